package server

import "net/http"

// shellPage is served for every app path. It opens the live socket with
// the requested path so the first gate decision happens before anything
// user-visible renders.
const shellPage = `<!DOCTYPE html>
<html lang="pt-BR">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>SacaRolha</title>
</head>
<body>
<div id="app"></div>
<script>
(function () {
  var proto = location.protocol === "https:" ? "wss:" : "ws:";
  var url = proto + "//" + location.host + "/live?path=" +
    encodeURIComponent(location.pathname);
  var ws = new WebSocket(url);
  ws.onmessage = function (ev) {
    var frame = JSON.parse(ev.data);
    if (frame.type === "replace") {
      history.replaceState(null, "", frame.path);
      ws.send(JSON.stringify({type: "navigate", path: frame.path}));
      return;
    }
    window.dispatchEvent(new CustomEvent("sacarolha:frame", {detail: frame}));
  };
})();
</script>
</body>
</html>
`

func (s *Server) handleShell(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write([]byte(shellPage))
}
