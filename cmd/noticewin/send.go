package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dickwu/noticewin/internal/model"
)

var sendOpts struct {
	id        string
	title     string
	kind      string
	payload   string
	minWidth  int
	minHeight int
	position  string
	x         int
	y         int
	padding   int
	file      string
}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Enqueue a message for presentation",
	Long: `Enqueue a message for presentation.

The message is persisted and shown when it reaches the front of the queue.
Sending an id that is already queued or showing is a no-op.

Examples:
  # Send a simple message
  noticewin send --kind reminder --title "Stand up"

  # Send with a payload and explicit placement
  noticewin send --kind build --payload '{"status":"failed"}' --position bottom-right

  # Send a batch from a YAML or JSON file
  noticewin send --file messages.yaml`,
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringVar(&sendOpts.id, "id", "",
		"Message id (generated when omitted)")
	sendCmd.Flags().StringVar(&sendOpts.title, "title", "",
		"Window title")
	sendCmd.Flags().StringVar(&sendOpts.kind, "kind", "info",
		"Message kind; selects the presentation template route")
	sendCmd.Flags().StringVar(&sendOpts.payload, "payload", "",
		"Opaque JSON payload handed to the presentation template")
	sendCmd.Flags().IntVar(&sendOpts.minWidth, "min-width", 0,
		"Minimum window width in pixels (0=config default)")
	sendCmd.Flags().IntVar(&sendOpts.minHeight, "min-height", 0,
		"Minimum window height in pixels (0=config default)")
	sendCmd.Flags().StringVar(&sendOpts.position, "position", "",
		"Placement preset (top-left, top-right, top-center, bottom-left, bottom-right, bottom-center, center)")
	sendCmd.Flags().IntVar(&sendOpts.x, "x", 0,
		"Explicit window x coordinate (overrides --position)")
	sendCmd.Flags().IntVar(&sendOpts.y, "y", 0,
		"Explicit window y coordinate (overrides --position)")
	sendCmd.Flags().IntVar(&sendOpts.padding, "padding", 0,
		"Pixels from the screen edge for preset placement")
	sendCmd.Flags().StringVar(&sendOpts.file, "file", "",
		"Read a list of messages from a YAML or JSON file ('-' for stdin)")
}

func runSend(cmd *cobra.Command, args []string) error {
	q, err := getQueue()
	if err != nil {
		return err
	}

	if sendOpts.file != "" {
		return sendBatch(sendOpts.file)
	}

	msg, err := messageFromFlags(cmd)
	if err != nil {
		return err
	}

	if err := q.Enqueue(*msg); err != nil {
		return fmt.Errorf("failed to enqueue message: %w", err)
	}

	fmt.Println(msg.ID)
	return nil
}

// messageFromFlags builds a message from the command-line flags.
func messageFromFlags(cmd *cobra.Command) (*model.Message, error) {
	id := sendOpts.id
	if id == "" {
		var err error
		id, err = model.NewMessageID()
		if err != nil {
			return nil, fmt.Errorf("failed to generate message id: %w", err)
		}
	}

	msg := &model.Message{
		ID:        id,
		Title:     sendOpts.title,
		Kind:      sendOpts.kind,
		MinWidth:  sendOpts.minWidth,
		MinHeight: sendOpts.minHeight,
	}

	if sendOpts.payload != "" {
		if !json.Valid([]byte(sendOpts.payload)) {
			return nil, fmt.Errorf("payload is not valid JSON")
		}
		msg.Payload = json.RawMessage(sendOpts.payload)
	}

	flags := cmd.Flags()
	if sendOpts.position != "" || flags.Changed("x") || flags.Changed("y") || flags.Changed("padding") {
		pos := &model.Position{
			Preset:  sendOpts.position,
			Padding: sendOpts.padding,
		}
		if flags.Changed("x") {
			x := sendOpts.x
			pos.X = &x
		}
		if flags.Changed("y") {
			y := sendOpts.y
			pos.Y = &y
		}
		msg.Position = pos
	}

	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return msg, nil
}

// sendBatch reads a list of messages from a YAML or JSON file and enqueues
// them in order. YAML parsing accepts JSON input as-is.
func sendBatch(path string) error {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	// Decode through generic YAML first, then re-encode as JSON: the payload
	// field is raw JSON and cannot absorb a YAML mapping directly.
	var raw []map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to convert %s: %w", path, err)
	}
	var msgs []model.Message
	if err := json.Unmarshal(encoded, &msgs); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(msgs) == 0 {
		return fmt.Errorf("no messages in %s", path)
	}

	for i := range msgs {
		if msgs[i].ID == "" {
			id, err := model.NewMessageID()
			if err != nil {
				return fmt.Errorf("failed to generate message id: %w", err)
			}
			msgs[i].ID = id
		}
		if err := msgs[i].Validate(); err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
	}

	for i := range msgs {
		if err := queueState.Enqueue(msgs[i]); err != nil {
			return fmt.Errorf("failed to enqueue %s: %w", msgs[i].ID, err)
		}
		fmt.Println(msgs[i].ID)
	}
	return nil
}
