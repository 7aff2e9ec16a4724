package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	var apiKey string
	var noPersist bool
	sendCmd := &cobra.Command{
		Use:   "send MESSAGE",
		Short: "Send a chat message for the session profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if sessionFlag == "" {
				return fmt.Errorf("--session required (set with -s)")
			}
			payload := map[string]interface{}{"message": args[0]}
			if apiKey != "" {
				payload["apiKey"] = apiKey
			}
			if noPersist {
				payload["persist"] = false
			}
			data, err := doPostJSON(fmt.Sprintf("%s/api/chat", apiFlag), payload)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	sendCmd.Flags().StringVarP(&apiKey, "api-key", "k", "", "External model API key")
	sendCmd.Flags().BoolVar(&noPersist, "no-persist", false, "Skip persisting the exchange")
	rootCmd.AddCommand(sendCmd)

	messagesCmd := &cobra.Command{Use: "messages", Short: "Message log operations"}

	var limit int
	recentCmd := &cobra.Command{
		Use:   "recent",
		Short: "List recent messages across all profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(fmt.Sprintf("%s/api/messages/recent?limit=%d", apiFlag, limit))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	recentCmd.Flags().IntVarP(&limit, "limit", "l", 50, "Maximum number of messages")
	messagesCmd.AddCommand(recentCmd)

	conversationCmd := &cobra.Command{
		Use:   "conversation PROFILE_ID",
		Short: "List a profile's conversation in chronological order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(fmt.Sprintf("%s/api/profiles/%s/messages", apiFlag, args[0]))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	messagesCmd.AddCommand(conversationCmd)

	rootCmd.AddCommand(messagesCmd)

	endCmd := &cobra.Command{
		Use:   "end-session",
		Short: "Clear the session's profile binding",
		RunE: func(cmd *cobra.Command, args []string) error {
			if sessionFlag == "" {
				return fmt.Errorf("--session required (set with -s)")
			}
			if _, err := doDelete(fmt.Sprintf("%s/api/session", apiFlag)); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, "session cleared")
			return nil
		},
	}
	rootCmd.AddCommand(endCmd)
}
