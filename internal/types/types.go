package types

// Message types pushed over the real-time channel.
const (
	MessageWordUpdate  = "wordUpdate"
	MessageLoopStopped = "loopStopped"
)

// Message is a server-to-client push.
type Message struct {
	Type string `json:"type"`
	Word string `json:"word,omitempty"`
}

func WordUpdate(word string) Message {
	return Message{Type: MessageWordUpdate, Word: word}
}

func LoopStopped() Message {
	return Message{Type: MessageLoopStopped}
}

type ControlResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	InitialWord string `json:"initialWord,omitempty"`
	Error       string `json:"error,omitempty"`
}

type CurrentWordResponse struct {
	CurrentWord   *string `json:"currentWord"`
	IsLoopRunning bool    `json:"isLoopRunning"`
}

type StatusResponse struct {
	WordLoop  WordLoopStatus  `json:"wordLoop"`
	WebSocket WebSocketStatus `json:"websocket"`
	Server    ServerStatus    `json:"server"`
}

type WordLoopStatus struct {
	IsRunning   bool    `json:"isRunning"`
	CurrentWord *string `json:"currentWord"`
}

type WebSocketStatus struct {
	ConnectedClients int `json:"connectedClients"`
}

type ServerStatus struct {
	Uptime    float64 `json:"uptime"`
	Timestamp string  `json:"timestamp"`
}

type HealthResponse struct {
	Status    string  `json:"status"`
	Timestamp string  `json:"timestamp"`
	Uptime    float64 `json:"uptime"`
}
