// Package main is a terminal chat client for the ondesk web chat gateway.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Message types
const (
	TypeHello        = "hello"
	TypeHelloAck     = "hello_ack"
	TypeUserMessage  = "user_message"
	TypeAgentMessage = "agent_message"
	TypeReplyStatus  = "reply_status"
	TypeError        = "error"
)

// BaseMessage contains common fields for all messages.
type BaseMessage struct {
	Type           string `json:"type"`
	Ts             int64  `json:"ts"`
	RequestID      string `json:"request_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// HelloMessage binds the connection to a conversation.
type HelloMessage struct {
	BaseMessage
	APIKey     string            `json:"api_key,omitempty"`
	ClientMeta map[string]string `json:"client_meta,omitempty"`
}

// UserMessage carries one line typed by the user.
type UserMessage struct {
	BaseMessage
	Content string `json:"content"`
}

// AgentMessage is an agent reply.
type AgentMessage struct {
	BaseMessage
	Content string `json:"content"`
}

// ReplyStatusMessage reports how a message was handled.
type ReplyStatusMessage struct {
	BaseMessage
	Success bool   `json:"success"`
	Outcome string `json:"outcome,omitempty"`
	Closed  bool   `json:"conversation_closed,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ErrorMessage represents an error from the server.
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Client represents a WebSocket client.
type Client struct {
	conn           *websocket.Conn
	conversationID string
	done           chan struct{}
}

// NewClient creates a new client and connects to the server.
func NewClient(addr string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	return &Client{
		conn: conn,
		done: make(chan struct{}),
	}, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	close(c.done)
	return c.conn.Close()
}

// SendHello binds the connection to conversationID and waits for hello_ack.
func (c *Client) SendHello(conversationID, apiKey string) error {
	msg := HelloMessage{
		BaseMessage: BaseMessage{
			Type:           TypeHello,
			Ts:             time.Now().UnixMilli(),
			ConversationID: conversationID,
		},
		APIKey: apiKey,
		ClientMeta: map[string]string{
			"client": "ondesk-cli",
		},
	}

	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("write hello: %w", err)
	}

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read hello_ack: %w", err)
	}

	var base BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		return fmt.Errorf("unmarshal hello_ack: %w", err)
	}

	if base.Type == TypeError {
		var errMsg ErrorMessage
		_ = json.Unmarshal(data, &errMsg)
		return fmt.Errorf("hello failed: %s - %s", errMsg.Code, errMsg.Message)
	}

	if base.Type != TypeHelloAck {
		return fmt.Errorf("expected hello_ack, got: %s", base.Type)
	}

	c.conversationID = base.ConversationID
	return nil
}

// SendMessage sends one customer message.
func (c *Client) SendMessage(content string) error {
	msg := UserMessage{
		BaseMessage: BaseMessage{
			Type:      TypeUserMessage,
			Ts:        time.Now().UnixMilli(),
			RequestID: fmt.Sprintf("req_%d", time.Now().UnixNano()),
		},
		Content: content,
	}

	return c.conn.WriteJSON(msg)
}

// ReadMessages reads and prints messages from the server.
func (c *Client) ReadMessages() {
	for {
		select {
		case <-c.done:
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					log.Printf("Read error: %v", err)
				}
				return
			}
			printMessage(data)
		}
	}
}

func printMessage(data []byte) {
	var base BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		log.Printf("Unmarshal error: %v", err)
		return
	}

	switch base.Type {
	case TypeAgentMessage:
		var msg AgentMessage
		_ = json.Unmarshal(data, &msg)
		fmt.Printf("\nagent: %s\n> ", msg.Content)
	case TypeReplyStatus:
		var msg ReplyStatusMessage
		_ = json.Unmarshal(data, &msg)
		switch {
		case !msg.Success:
			fmt.Printf("\n[reply failed] %s\n> ", msg.Error)
		case msg.Closed:
			fmt.Printf("\n[conversation closed]\n> ")
		}
	case TypeError:
		var msg ErrorMessage
		_ = json.Unmarshal(data, &msg)
		fmt.Printf("\n[error %s] %s\n> ", msg.Code, msg.Message)
	default:
		var pretty map[string]interface{}
		_ = json.Unmarshal(data, &pretty)
		formatted, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Printf("\n[%s]\n%s\n> ", base.Type, formatted)
	}
}

func main() {
	addr := flag.String("addr", "ws://localhost:8088/ws", "WebSocket gateway address")
	apiKey := flag.String("api-key", "", "API key for authentication")
	conversationID := flag.String("conversation", "", "Conversation ID to join")
	flag.Parse()

	log.SetFlags(log.Ltime)

	if *conversationID == "" {
		log.Fatal("-conversation is required")
	}

	fmt.Printf("Connecting to %s...\n", *addr)

	client, err := NewClient(*addr)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer client.Close()

	if err := client.SendHello(*conversationID, *apiKey); err != nil {
		log.Fatalf("Hello failed: %v", err)
	}

	fmt.Printf("Joined conversation %s\n", client.conversationID)
	fmt.Println("Type a message and press Enter to send. /quit to exit.")

	go client.ReadMessages()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		select {
		case <-interrupt:
			fmt.Println("\nInterrupted")
			return
		default:
			if !scanner.Scan() {
				return
			}

			input := strings.TrimSpace(scanner.Text())
			if input == "" {
				continue
			}

			if input == "/quit" {
				fmt.Println("Bye!")
				return
			}

			if err := client.SendMessage(input); err != nil {
				log.Printf("Send error: %v", err)
			}
		}
	}
}
