// Command overlayd starts one overlay server endpoint — a chat relay or
// a content (text/media) file server — wired to its static neighbours
// and a YAML configuration file.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/overlaynet/endpoint/core"
	"github.com/overlaynet/endpoint/device/app/chat"
	"github.com/overlaynet/endpoint/device/app/content"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "overlayd",
		Short: "Overlay server endpoint",
		Long: `overlayd runs one overlay server endpoint: a chat relay or a
content (text/media) file server, wired from a YAML configuration file.`,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./config.yaml", "Path to configuration file")

	rootCmd.AddCommand(chatCmd(&configPath))
	rootCmd.AddCommand(textCmd(&configPath))
	rootCmd.AddCommand(mediaCmd(&configPath))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func chatCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Run a chat server endpoint",
		Long:  "Run the chat variant: a registered-client roster and message relay. Requires server.variant: chat in the config file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadEndpointConfig(*configPath, core.ChatServer)
			if err != nil {
				return err
			}
			app := chat.New(logger)
			return runEndpoint(cfg, core.ChatServer, logger, app)
		},
	}
}

func textCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "text",
		Short: "Run a text content server endpoint",
		Long:  "Run the Text content variant: serves the built-in text file catalog. Requires server.variant: text in the config file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadEndpointConfig(*configPath, core.TextServer)
			if err != nil {
				return err
			}
			app := content.New(core.TextServer, cfg.Server.CatalogRoot, content.TextCatalog(), logger)
			return runEndpoint(cfg, core.TextServer, logger, app)
		},
	}
}

func mediaCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "media",
		Short: "Run a media content server endpoint",
		Long:  "Run the Media content variant: decodes and re-encodes catalog images as JPEG. Requires server.variant: media in the config file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadEndpointConfig(*configPath, core.MediaServer)
			if err != nil {
				return err
			}
			app := content.New(core.MediaServer, cfg.Server.CatalogRoot, content.MediaCatalog(), logger)
			return runEndpoint(cfg, core.MediaServer, logger, app)
		},
	}
}
