// Package main provides the playback control CLI entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/musicmind/internal/api/connect"
)

var (
	app    = kingpin.New("musicmind-playerctl", "musicmind playback control client")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	token  = app.Flag("token", "Control token (or set MUSICMIND_CONTROL_TOKEN env)").Envar("MUSICMIND_CONTROL_TOKEN").String()

	// state command
	stateCmd = app.Command("state", "Show the playback state").Alias("status")

	// watch command
	watchCmd = app.Command("watch", "Stream playback state changes")

	// queue-list command
	queueListCmd = app.Command("queue-list", "Show the queue")

	// play command
	playCmd      = app.Command("play", "Play a track")
	playID       = playCmd.Arg("id", "Track ID").Required().String()
	playURL      = playCmd.Arg("url", "Audio or video URL").Required().String()
	playTitle    = playCmd.Arg("title", "Track title").String()
	playArtist   = playCmd.Arg("artist", "Artist name").String()
	playImageURL = playCmd.Flag("image", "Cover art URL").String()

	toggleCmd  = app.Command("toggle", "Toggle play/pause")
	nextCmd    = app.Command("next", "Skip to the next track")
	prevCmd    = app.Command("prev", "Skip to the previous track")
	shuffleCmd = app.Command("shuffle", "Toggle shuffle")
	repeatCmd  = app.Command("repeat", "Cycle the repeat mode (off, all, one)")

	// seek command
	seekCmd     = app.Command("seek", "Seek to a position")
	seekSeconds = seekCmd.Arg("seconds", "Position in seconds").Required().Float64()

	// volume command
	volumeCmd   = app.Command("volume", "Set the volume")
	volumeLevel = volumeCmd.Arg("level", "Volume between 0 and 1").Required().Float64()

	// queue command
	queueCmd    = app.Command("queue", "Build a queue from the catalog and play it")
	queueMode   = queueCmd.Arg("mode", "similar, recommend, search, artist or user").Required().Enum("similar", "recommend", "search", "artist", "user")
	queueArg    = queueCmd.Arg("query", "Search text, artist name or user ID").String()
	queueCount  = queueCmd.Flag("count", "Number of tracks to request").Short('n').Int()
	queueDryRun = queueCmd.Flag("dry-run", "Print the list without queueing it").Bool()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	client := apiconnect.NewClient(http.DefaultClient, *server, *token)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		state *apiconnect.State
		err   error
	)

	switch command {
	case stateCmd.FullCommand():
		state, err = client.GetState(ctx)
	case watchCmd.FullCommand():
		err = watch(ctx, client)
	case queueListCmd.FullCommand():
		err = listQueue(ctx, client)
	case playCmd.FullCommand():
		state, err = client.PlayTrack(ctx, apiconnect.Track{
			ID:        *playID,
			Title:     *playTitle,
			Artist:    *playArtist,
			SourceURL: *playURL,
			ImageURL:  *playImageURL,
		})
	case toggleCmd.FullCommand():
		state, err = client.TogglePlay(ctx)
	case nextCmd.FullCommand():
		state, err = client.Next(ctx)
	case prevCmd.FullCommand():
		state, err = client.Previous(ctx)
	case seekCmd.FullCommand():
		state, err = client.Seek(ctx, *seekSeconds)
	case volumeCmd.FullCommand():
		state, err = client.SetVolume(ctx, *volumeLevel)
	case shuffleCmd.FullCommand():
		var on bool
		if on, err = client.ToggleShuffle(ctx); err == nil {
			fmt.Printf("Shuffle: %v\n", on)
		}
	case repeatCmd.FullCommand():
		var mode string
		if mode, err = client.ToggleRepeat(ctx); err == nil {
			fmt.Printf("Repeat: %s\n", mode)
		}
	case queueCmd.FullCommand():
		err = buildQueue(ctx, client)
	}

	if err != nil {
		fmt.Printf("Error: %v\n", formatError(err))
		os.Exit(1)
	}
	if state != nil {
		printState(state)
	}
}

func watch(ctx context.Context, client *apiconnect.Client) error {
	fmt.Println("Watching playback state. Press Ctrl+C to exit.")
	return client.WatchState(ctx, func(s *apiconnect.State) error {
		fmt.Printf("\n[Sequence: %d]\n", s.Sequence)
		printState(s)
		return nil
	})
}

func listQueue(ctx context.Context, client *apiconnect.Client) error {
	q, err := client.GetQueue(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Queue (%d tracks, repeat=%s, shuffle=%v):\n", len(q.Tracks), q.Repeat, q.Shuffle)
	order := q.ShuffleOrder
	if len(order) == 0 {
		order = make([]int, len(q.Tracks))
		for i := range order {
			order[i] = i
		}
	}
	for pos, i := range order {
		marker := "  "
		if i == q.CurrentIndex {
			marker = "▶ "
		}
		t := q.Tracks[i]
		fmt.Printf("%s%3d. %s - %s [%s]\n", marker, pos+1, t.Title, t.Artist, t.ID)
	}
	return nil
}

func buildQueue(ctx context.Context, client *apiconnect.Client) error {
	resp, err := client.BuildQueue(ctx, &apiconnect.BuildQueueRequest{
		Mode:   *queueMode,
		Query:  *queueArg,
		Count:  *queueCount,
		DryRun: *queueDryRun,
	})
	if err != nil {
		return err
	}

	if *queueDryRun {
		fmt.Printf("Found %d tracks:\n", len(resp.Tracks))
	} else {
		fmt.Printf("Queued %d tracks:\n", len(resp.Tracks))
	}
	for i, t := range resp.Tracks {
		source := resp.Sources[t.ID]
		if source == "" {
			source = "seed"
		}
		fmt.Printf("  %3d. %s - %s (%s)\n", i+1, t.Title, t.Artist, source)
	}
	if len(resp.Rejected) > 0 {
		fmt.Printf("Rejected: %v\n", resp.Rejected)
	}
	return nil
}

func printState(s *apiconnect.State) {
	status := s.Phase
	switch {
	case s.IsLoading:
		status = "⏳ " + s.Phase
	case s.IsPlaying:
		status = "▶️  " + s.Phase
	case s.Phase == "paused":
		status = "⏸  " + s.Phase
	}
	fmt.Printf("State: %s\n", status)

	if s.Track != nil {
		fmt.Printf("  Track: %s - %s [%s]\n", s.Track.Title, s.Track.Artist, s.Track.ID)
		fmt.Printf("  Source: %s (%s)\n", s.Track.SourceURL, s.Backend)
		fmt.Printf("  Position: %s / %s\n", formatSeconds(s.CurrentTime), formatSeconds(s.Duration))
	}
	fmt.Printf("  Volume: %.0f%%\n", s.Volume*100)
	if s.Queue.Length > 0 {
		fmt.Printf("  Queue: %d/%d (repeat=%s, shuffle=%v)\n", s.Queue.Index+1, s.Queue.Length, s.Queue.Repeat, s.Queue.Shuffle)
	}
	if s.Error != "" {
		fmt.Printf("  Error [%s]: %s\n", s.ErrorKind, s.Error)
	}
}

func formatSeconds(sec float64) string {
	total := int(sec)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func formatError(err error) string {
	var cerr *connect.Error
	if errors.As(err, &cerr) {
		return fmt.Sprintf("[%s] %s", cerr.Code(), cerr.Message())
	}
	return err.Error()
}
