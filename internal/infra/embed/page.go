package embed

import "net/http"

func (b *Bridge) handlePage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write([]byte(pageHTML))
}

const pageHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>musicmind player</title>
  <style>
    html, body { margin: 0; background: #111; color: #aaa; font-family: monospace; }
    #players { position: absolute; left: -10000px; width: 320px; height: 180px; overflow: hidden; }
    #status { padding: 8px; }
  </style>
</head>
<body>
  <div id="status">connecting</div>
  <div id="players"></div>
  <script>
    const players = {};
    let ws;
    let apiReady = false;
    const pendingCreates = [];

    function setStatus(text) { document.getElementById('status').textContent = text; }

    function emit(msg) {
      if (ws && ws.readyState === WebSocket.OPEN) ws.send(JSON.stringify(msg));
    }

    function create(cmd) {
      const el = document.createElement('div');
      el.id = 'p-' + cmd.handle;
      document.getElementById('players').appendChild(el);
      const entry = { ready: false, queue: [], player: null };
      players[cmd.handle] = entry;
      entry.player = new YT.Player(el.id, {
        videoId: cmd.videoId,
        playerVars: { autoplay: cmd.autoplay ? 1 : 0, controls: cmd.controls ? 1 : 0, playsinline: 1 },
        events: {
          onReady: () => {
            entry.ready = true;
            entry.player.setVolume(cmd.volume);
            emit({ event: 'ready', handle: cmd.handle, duration: entry.player.getDuration() || 0 });
            entry.queue.splice(0).forEach((c) => run(entry, c));
          },
          onStateChange: (e) => emit({ event: 'state', handle: cmd.handle, state: e.data }),
          onError: (e) => emit({ event: 'error', handle: cmd.handle, code: e.data }),
        },
      });
    }

    function run(entry, cmd) {
      const p = entry.player;
      switch (cmd.op) {
        case 'play': p.playVideo(); break;
        case 'pause': p.pauseVideo(); break;
        case 'seek': p.seekTo(cmd.seconds || 0, !!cmd.allowSeekAhead); break;
        case 'volume': p.setVolume(cmd.volume || 0); break;
        case 'getTime':
          emit({ event: 'time', handle: cmd.handle, request: cmd.request, seconds: p.getCurrentTime() || 0 });
          break;
      }
    }

    function handle(cmd) {
      if (cmd.op === 'create') {
        if (apiReady) create(cmd); else pendingCreates.push(cmd);
        return;
      }
      const entry = players[cmd.handle];
      if (!entry) {
        if (cmd.op === 'getTime') emit({ event: 'time', handle: cmd.handle, request: cmd.request, seconds: 0 });
        return;
      }
      if (cmd.op === 'destroy') {
        delete players[cmd.handle];
        if (entry.player) entry.player.destroy();
        const el = document.getElementById('p-' + cmd.handle);
        if (el) el.remove();
        return;
      }
      if (!entry.ready) {
        if (cmd.op === 'getTime') emit({ event: 'time', handle: cmd.handle, request: cmd.request, seconds: 0 });
        else entry.queue.push(cmd);
        return;
      }
      run(entry, cmd);
    }

    function connect() {
      const proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
      ws = new WebSocket(proto + location.host + location.pathname.replace(/\/?$/, '/ws'));
      ws.onopen = () => setStatus('connected');
      ws.onmessage = (e) => handle(JSON.parse(e.data));
      ws.onclose = () => {
        setStatus('disconnected');
        Object.keys(players).forEach((h) => handle({ op: 'destroy', handle: h }));
        setTimeout(connect, 2000);
      };
    }

    window.onYouTubeIframeAPIReady = () => {
      apiReady = true;
      pendingCreates.splice(0).forEach(create);
    };

    const tag = document.createElement('script');
    tag.src = 'https://www.youtube.com/iframe_api';
    document.head.appendChild(tag);
    connect();
  </script>
</body>
</html>
`
