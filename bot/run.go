package bot

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"namewatch/utils"
)

// Run opens the gateway and blocks until SIGINT or SIGTERM.
func (b *Bot) Run() error {
	if err := b.prepareWords(); err != nil {
		return err
	}
	if err := b.Session.Open(); err != nil {
		return fmt.Errorf("opening connection: %w", err)
	}

	scheduler := NewScheduler(b)
	scheduler.Start()

	fmt.Println("Bot is now running. Press CTRL-C to exit.")
	utils.LogInfo(b.Platform, b.config.LogChannelID, "System", "Startup",
		fmt.Sprintf("Watching guild %s, reconciling every %s", b.config.Guard.GuildID, b.config.Guard.CheckInterval))

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	select {
	case <-sc:
	case <-b.ctx.Done():
	}

	if err := scheduler.Stop(); err != nil {
		log.Printf("Background task failed: %v", err)
	}
	return nil
}
