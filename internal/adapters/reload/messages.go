package reload

// Message types sent to browser clients.
const (
	TypeHello  = "hello"
	TypeReload = "reload"
	TypeInject = "inject"
)

// Message is the JSON frame sent over the websocket.
type Message struct {
	Type  string   `json:"type"`
	ID    string   `json:"id,omitempty"`
	Paths []string `json:"paths,omitempty"`
}
