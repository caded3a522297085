package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/CodeFleck/sensorvision-sub002/internal/socketrpc"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

var (
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	valueStyle  = lipgloss.NewStyle().Bold(true)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// ctl runs one admin command against a live sensorvisiond over its
// unix socket.
type ctl struct {
	client     *socketrpc.Client
	socketPath string
	out        io.Writer
}

var commands = map[string]func(*ctl, []string) error{
	"status":        (*ctl).runStatus,
	"devices":       (*ctl).runDevices,
	"trash":         (*ctl).runTrash,
	"restore":       (*ctl).runRestore,
	"retention":     (*ctl).runRetention,
	"notifications": (*ctl).runNotifications,
}

func main() {
	var socketPath string
	var showVersion bool

	flag.StringVar(&socketPath, "socket", "", "path to the sensorvisiond control socket")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.Usage = usage
	flag.Parse()

	if showVersion {
		fmt.Printf("SensorVision Ctl - Server Admin CLI\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Built:      %s\n", buildTime)
		fmt.Printf("  Go version: %s\n", goVersion)
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	run, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		usage()
		os.Exit(2)
	}

	if socketPath == "" {
		socketPath = socketrpc.DefaultSocketPath()
	}

	client, err := socketrpc.Dial(socketPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: connecting to %s: %v\n", socketPath, err)
		fmt.Fprintln(os.Stderr, "Is sensorvisiond running?")
		os.Exit(1)
	}

	c := &ctl{client: client, socketPath: socketPath, out: os.Stdout}
	err = run(c, args[1:])
	client.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `sensorvisionctl - admin CLI for a running sensorvisiond

Usage:
  sensorvisionctl [flags] <command> [command flags]

Commands:
  status          show server totals
  devices         list registered devices (-limit N)
  trash           list soft-deleted entities
  restore <id>    restore a trash entry
  retention       run a retention sweep now
  notifications   show recent notifications (-limit N)

Flags:
`)
	flag.PrintDefaults()
}

func (c *ctl) runStatus(args []string) error {
	if len(args) != 0 {
		return errors.New("usage: sensorvisionctl status")
	}

	telemetry, err := c.client.TelemetryCount()
	if err != nil {
		return fmt.Errorf("reading telemetry count: %w", err)
	}
	devices, err := c.client.DeviceCount()
	if err != nil {
		return fmt.Errorf("reading device count: %w", err)
	}

	fmt.Fprintln(c.out, valueStyle.Render("SensorVision Server"))
	fmt.Fprintf(c.out, "  %s %s\n", labelStyle.Render("Socket:   "), c.socketPath)
	fmt.Fprintf(c.out, "  %s %d\n", labelStyle.Render("Devices:  "), devices)
	fmt.Fprintf(c.out, "  %s %d points\n", labelStyle.Render("Telemetry:"), telemetry)
	return nil
}

func (c *ctl) runDevices(args []string) error {
	fs := flag.NewFlagSet("devices", flag.ExitOnError)
	limit := fs.Int("limit", 50, "maximum number of devices to list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	devices, err := c.client.ListDevices(*limit)
	if err != nil {
		return fmt.Errorf("listing devices: %w", err)
	}
	if len(devices) == 0 {
		fmt.Fprintln(c.out, "No devices registered.")
		return nil
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers("ID", "DEVICE", "NAME", "LOCATION", "LAST SEEN")
	for _, d := range devices {
		t.Row(strconv.FormatInt(d.ID, 10), d.DeviceID, d.Name, d.Location, formatAge(d.LastSeenAt))
	}
	fmt.Fprintln(c.out, t)
	return nil
}

func (c *ctl) runTrash(args []string) error {
	if len(args) != 0 {
		return errors.New("usage: sensorvisionctl trash")
	}

	entries, err := c.client.ListTrash()
	if err != nil {
		return fmt.Errorf("listing trash: %w", err)
	}
	if len(entries) == 0 {
		fmt.Fprintln(c.out, "Trash is empty.")
		return nil
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers("ID", "TYPE", "LABEL", "DELETED", "EXPIRES")
	for _, e := range entries {
		expires := "never"
		if e.ExpiresAt != nil {
			expires = e.ExpiresAt.Local().Format("2006-01-02 15:04")
		}
		t.Row(
			strconv.FormatInt(e.ID, 10),
			e.EntityType,
			e.Label,
			e.DeletedAt.Local().Format("2006-01-02 15:04"),
			expires,
		)
	}
	fmt.Fprintln(c.out, t)
	fmt.Fprintln(c.out, dimStyle.Render("Restore with: sensorvisionctl restore <id>"))
	return nil
}

func (c *ctl) runRestore(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: sensorvisionctl restore <trash-id>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid trash id %q", args[0])
	}

	if err := c.client.RestoreTrash(id); err != nil {
		return fmt.Errorf("restoring trash entry %d: %w", id, err)
	}
	fmt.Fprintf(c.out, "Restored trash entry %d.\n", id)
	return nil
}

func (c *ctl) runRetention(args []string) error {
	if len(args) != 0 {
		return errors.New("usage: sensorvisionctl retention")
	}

	exec, err := c.client.RunRetentionNow()
	if err != nil {
		return fmt.Errorf("running retention sweep: %w", err)
	}
	if exec.Status != "completed" {
		return fmt.Errorf("retention sweep failed: %s", exec.Detail)
	}

	took := exec.FinishedAt.Sub(exec.StartedAt).Round(time.Millisecond)
	fmt.Fprintf(c.out, "Retention sweep completed in %s\n", took)
	fmt.Fprintf(c.out, "  %s %d\n", labelStyle.Render("Telemetry deleted:"), exec.TelemetryDeleted)
	fmt.Fprintf(c.out, "  %s %d\n", labelStyle.Render("Events deleted:   "), exec.EventsDeleted)
	fmt.Fprintf(c.out, "  %s %d\n", labelStyle.Render("Trash purged:     "), exec.TrashDeleted)
	return nil
}

func (c *ctl) runNotifications(args []string) error {
	fs := flag.NewFlagSet("notifications", flag.ExitOnError)
	limit := fs.Int("limit", 20, "maximum number of notifications to show")
	if err := fs.Parse(args); err != nil {
		return err
	}

	notes, err := c.client.RecentNotifications(*limit)
	if err != nil {
		return fmt.Errorf("listing notifications: %w", err)
	}
	if len(notes) == 0 {
		fmt.Fprintln(c.out, "No notifications.")
		return nil
	}

	for _, n := range notes {
		when := dimStyle.Render(n.CreatedAt.Local().Format("2006-01-02 15:04"))
		fmt.Fprintf(c.out, "%s  %-16s %s\n", when, n.Kind, n.Message)
	}
	return nil
}

// formatAge renders a last-seen timestamp relative to now. The zero
// time means the device has never reported.
func formatAge(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	age := time.Since(t)
	switch {
	case age < time.Minute:
		return "just now"
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(age.Hours()))
	default:
		return t.Local().Format("2006-01-02")
	}
}
