package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"rentchat/domain"
	"rentchat/transport"
)

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().String("file", "", "Attach a file instead of sending text")
}

var sendCmd = &cobra.Command{
	Use:   "send <room-id> [text]",
	Short: "Send one message and exit",
	Long: "Sends a single message over REST without opening the live stack.\n" +
		"With --file the attachment is uploaded first and sent as a FILE or\n" +
		"IMAGE message depending on its extension.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roomID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid room id %q", args[0])
		}

		config, err := loadConfig()
		if err != nil {
			return err
		}
		log := newLogger(config)

		send := domain.SendMessageCommand{
			Room:     domain.RoomID(roomID),
			SenderID: config.UserID,
			Type:     domain.TextMessage,
			Content:  strings.Join(args[1:], " "),
		}

		path, _ := cmd.Flags().GetString("file")
		if path != "" {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()

			uploader := transport.NewUploadClient(log, config.APIBaseURL, config.APIToken)
			ref, err := uploader.Upload(cmd.Context(), filepath.Base(path), f, "chat")
			if err != nil {
				return err
			}
			send.Type = messageTypeFor(path)
			send.AttachmentRef = ref
		} else if send.Content == "" {
			return fmt.Errorf("nothing to send: give a text or --file")
		}

		if err := newRESTClient(log, config).PostMessage(cmd.Context(), send); err != nil {
			return err
		}
		fmt.Println("Sent.")
		return nil
	},
}

func messageTypeFor(path string) domain.MessageType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return domain.ImageMessage
	default:
		return domain.FileMessage
	}
}
