package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/CodeFleck/sensorvision-sub002/internal/apiclient"
	"github.com/CodeFleck/sensorvision-sub002/internal/model"
	"github.com/CodeFleck/sensorvision-sub002/internal/player"

	tea "github.com/charmbracelet/bubbletea"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

func main() {
	var configPath string
	var serverURL string
	var shareToken string
	var playlistID int64
	var showVersion bool

	flag.StringVar(&configPath, "config", "", "config file (default is $HOME/.config/sensorvision/player.yml)")
	flag.StringVar(&serverURL, "url", "", "SensorVision server URL")
	flag.StringVar(&shareToken, "share-token", "", "playlist share token for unattended displays")
	flag.Int64Var(&playlistID, "playlist", 0, "playlist ID to play (needs credentials)")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.Parse()

	if showVersion {
		fmt.Printf("SensorVision Player - Kiosk Display\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Built:      %s\n", buildTime)
		fmt.Printf("  Go version: %s\n", goVersion)
		return
	}

	cfg, err := loadPlayerConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if serverURL != "" {
		cfg.ServerURL = serverURL
	}
	if shareToken != "" {
		cfg.ShareToken = shareToken
	}
	if playlistID != 0 {
		cfg.PlaylistID = playlistID
	}

	if err := runPlayer(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runPlayer(cfg playerConfig) error {
	if cfg.ShareToken == "" && cfg.PlaylistID == 0 {
		return errors.New("nothing to play: set -share-token or -playlist")
	}

	client := apiclient.New(cfg.ServerURL)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	pl, err := resolvePlaylist(ctx, client, cfg)
	cancel()
	if err != nil {
		return playlistError(err)
	}

	m := player.New(player.NewSource(client), pl)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		if strings.Contains(err.Error(), "TTY") || strings.Contains(err.Error(), "/dev/tty") {
			return fmt.Errorf("the player requires a real terminal")
		}
		return fmt.Errorf("error running player: %w", err)
	}

	return nil
}

// resolvePlaylist loads the playlist to rotate. Share tokens need no
// account; playing by ID authenticates first.
func resolvePlaylist(ctx context.Context, client *apiclient.Client, cfg playerConfig) (model.Playlist, error) {
	if cfg.ShareToken != "" {
		pl, err := client.PlaylistByToken(ctx, cfg.ShareToken)
		if err != nil {
			return model.Playlist{}, err
		}
		client.UseShareToken(cfg.ShareToken)
		return pl, nil
	}

	switch {
	case cfg.Token != "":
		client.SetToken(cfg.Token)
	case cfg.Username != "":
		if _, err := client.Login(ctx, cfg.Username, cfg.Password); err != nil {
			return model.Playlist{}, err
		}
	default:
		return model.Playlist{}, errors.New("playing by ID needs a token or username and password")
	}
	return client.PlaylistByID(ctx, cfg.PlaylistID)
}

// playlistError rewrites API failures into messages a kiosk operator can
// act on without reading server logs.
func playlistError(err error) error {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusGone:
			return errors.New("the share link for this playlist has expired; ask the owner for a fresh one")
		case http.StatusNotFound:
			return errors.New("no playlist matches that token or ID")
		case http.StatusUnauthorized:
			return errors.New("the server rejected the credentials; check token, username, and password")
		}
	}
	return fmt.Errorf("loading playlist: %w", err)
}
