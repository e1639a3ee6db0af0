package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opshub/backend/internal/models"
)

func (a *app) techniciansCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "technicians",
		Aliases: []string{"tech"},
		Short:   "Manage the technician directory",
	}

	var status string
	list := &cobra.Command{
		Use:   "list",
		Short: "List technicians ordered by name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := models.TechnicianStatus(strings.ToLower(status))
			if s != "" && !s.Valid() {
				return fmt.Errorf("invalid status %q", status)
			}
			store, _, err := a.openStore(commandContext(cmd))
			if err != nil {
				return err
			}
			defer store.Close()
			items, err := store.ListTechnicians(commandContext(cmd), s)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), items)
		},
	}
	list.Flags().StringVar(&status, "status", "", "filter by status (available, busy, offline)")

	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Add an available technician",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cfg, err := a.openStore(commandContext(cmd))
			if err != nil {
				return err
			}
			defer store.Close()
			tech, err := a.dispatcher(store, cfg).AddTechnician(commandContext(cmd), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), tech)
		},
	}

	setStatus := &cobra.Command{
		Use:   "status ID STATUS",
		Short: "Set a technician's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cfg, err := a.openStore(commandContext(cmd))
			if err != nil {
				return err
			}
			defer store.Close()
			tech, err := a.dispatcher(store, cfg).SetTechnicianStatus(commandContext(cmd), args[0], models.TechnicianStatus(strings.ToLower(args[1])))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), tech)
		},
	}

	cmd.AddCommand(list, add, setStatus)
	return cmd
}

func (a *app) ticketsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tickets",
		Short: "Inspect and close tickets",
	}

	var f models.TicketFilter
	var status, priority string
	list := &cobra.Command{
		Use:   "list",
		Short: "List tickets, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f.Status = models.TicketStatus(strings.ToLower(status))
			f.Priority = models.Priority(strings.ToUpper(priority))
			if f.Priority != "" && !f.Priority.Valid() {
				return fmt.Errorf("invalid priority %q", priority)
			}
			store, _, err := a.openStore(commandContext(cmd))
			if err != nil {
				return err
			}
			defer store.Close()
			items, err := store.ListTickets(commandContext(cmd), f)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), items)
		},
	}
	list.Flags().StringVar(&status, "status", "", "open or closed")
	list.Flags().StringVar(&priority, "priority", "", "P1 to P4")
	list.Flags().StringVar(&f.Building, "building", "", "building name, e.g. \"Building A\"")
	list.Flags().IntVar(&f.Limit, "limit", 50, "page size (max 200)")
	list.Flags().IntVar(&f.Offset, "offset", 0, "offset")

	closeCmd := &cobra.Command{
		Use:   "close ID",
		Short: "Close a ticket and free its technician",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cfg, err := a.openStore(commandContext(cmd))
			if err != nil {
				return err
			}
			defer store.Close()
			ticket, released, err := a.dispatcher(store, cfg).CloseTicket(commandContext(cmd), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"ticket": ticket, "released_technician": released})
		},
	}

	cmd.AddCommand(list, closeCmd)
	return cmd
}

// redactURL hides credentials before a database URL is printed.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
