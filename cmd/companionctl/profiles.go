package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	profilesCmd := &cobra.Command{Use: "profiles", Short: "Profile operations"}

	// register
	var name, email, phone, bio string
	var allowTech, sensitiveAck bool
	registerCmd := &cobra.Command{
		Use:   "register",
		Short: "Register a profile and bind it to the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" || email == "" {
				return fmt.Errorf("--name and --email required")
			}
			if sessionFlag == "" {
				return fmt.Errorf("--session required (set with -s)")
			}
			payload := map[string]interface{}{
				"name":             name,
				"email":            email,
				"allowTechInfo":    allowTech,
				"sensitiveDataAck": sensitiveAck,
			}
			if phone != "" {
				payload["phone"] = phone
			}
			if bio != "" {
				payload["bio"] = bio
			}
			data, err := doPostJSON(fmt.Sprintf("%s/api/profiles", apiFlag), payload)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	registerCmd.Flags().StringVarP(&name, "name", "n", "", "Display name (required)")
	registerCmd.Flags().StringVarP(&email, "email", "e", "", "Email address (required)")
	registerCmd.Flags().StringVarP(&phone, "phone", "p", "", "Phone number")
	registerCmd.Flags().StringVarP(&bio, "bio", "b", "", "Short bio")
	registerCmd.Flags().BoolVar(&allowTech, "allow-tech-info", false, "Consent to technical info collection")
	registerCmd.Flags().BoolVar(&sensitiveAck, "sensitive-ack", false, "Acknowledge the sensitive data notice")
	_ = registerCmd.MarkFlagRequired("name")
	_ = registerCmd.MarkFlagRequired("email")
	profilesCmd.AddCommand(registerCmd)

	// get
	getCmd := &cobra.Command{
		Use:   "get PROFILE_ID",
		Short: "Get profile by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(fmt.Sprintf("%s/api/profiles/%s", apiFlag, args[0]))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	profilesCmd.AddCommand(getCmd)

	// list
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List registered profiles, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(fmt.Sprintf("%s/api/profiles", apiFlag))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	profilesCmd.AddCommand(listCmd)

	// current
	currentCmd := &cobra.Command{
		Use:   "current",
		Short: "Show the profile bound to the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if sessionFlag == "" {
				return fmt.Errorf("--session required (set with -s)")
			}
			data, err := doGet(fmt.Sprintf("%s/api/session/profile", apiFlag))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	profilesCmd.AddCommand(currentCmd)

	rootCmd.AddCommand(profilesCmd)
}
