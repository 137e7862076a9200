package reload

import (
	"bytes"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ClientScriptPath and SocketPath are reserved below the served root.
const (
	ClientScriptPath = "/__kiln/client.js"
	SocketPath       = "/__kiln/ws"
)

var snippet = []byte(`<script async src="` + ClientScriptPath + `"></script>`)

// InjectSnippet inserts the client script tag before the last </body>, or
// appends it when the document has none.
func InjectSnippet(doc []byte) []byte {
	idx := bytes.LastIndex(bytes.ToLower(doc), []byte("</body>"))
	if idx < 0 {
		return append(append([]byte(nil), doc...), snippet...)
	}

	out := make([]byte, 0, len(doc)+len(snippet))
	out = append(out, doc[:idx]...)
	out = append(out, snippet...)
	return append(out, doc[idx:]...)
}

// fileHandler serves root, injecting the client snippet into HTML documents.
func fileHandler(root string) http.Handler {
	files := http.FileServer(http.Dir(root))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := path.Clean("/" + r.URL.Path)
		full := filepath.Join(root, filepath.FromSlash(name))

		info, err := os.Stat(full)
		if err != nil {
			files.ServeHTTP(w, r)
			return
		}
		if info.IsDir() {
			// The file server owns the trailing slash redirect.
			if !strings.HasSuffix(r.URL.Path, "/") {
				files.ServeHTTP(w, r)
				return
			}
			full = filepath.Join(full, "index.html")
			if info, err = os.Stat(full); err != nil {
				files.ServeHTTP(w, r)
				return
			}
		}

		switch strings.ToLower(filepath.Ext(full)) {
		case ".html", ".htm":
		default:
			files.ServeHTTP(w, r)
			return
		}

		//nolint:gosec // full is confined to root by path.Clean
		doc, err := os.ReadFile(full)
		if err != nil {
			http.Error(w, "unreadable document", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Cache-Control", "no-cache")
		http.ServeContent(w, r, filepath.Base(full), info.ModTime(), bytes.NewReader(InjectSnippet(doc)))
	})
}
