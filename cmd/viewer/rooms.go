package main

import (
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(roomsCmd)
	roomsCmd.Flags().Int("size", 50, "Number of rooms to fetch")
}

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "List the conversations of the current user",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig()
		if err != nil {
			return err
		}
		log := newLogger(config)
		size, _ := cmd.Flags().GetInt("size")

		rooms, err := newRESTClient(log, config).ListRooms(cmd.Context(), 0, size)
		if err != nil {
			return err
		}
		if len(rooms) == 0 {
			fmt.Println("No conversations yet.")
			return nil
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Room", "Name", "Last Activity", "Unread"})
		table.SetAutoWrapText(false)
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		table.SetCenterSeparator("")
		table.SetColumnSeparator("")
		table.SetRowSeparator("")
		table.SetHeaderLine(false)
		table.SetBorder(false)
		table.SetTablePadding("\t")

		for _, room := range rooms {
			unread := ""
			if room.UnreadCount > 0 {
				unread = fmt.Sprintf("%d", room.UnreadCount)
			}
			table.Append([]string{
				fmt.Sprintf("%d", room.ID),
				room.Name,
				room.LastMessageAt.Local().Format(time.RFC822),
				unread,
			})
		}
		table.Render()
		return nil
	},
}
