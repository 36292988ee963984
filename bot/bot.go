package bot

import (
	"context"
	"fmt"
	"log"
	"time"

	"namewatch/enforce"
	"namewatch/model"
	"namewatch/platform"
	"namewatch/policy"
	"namewatch/scanner"
	"namewatch/tasks/decision"
	"namewatch/utils"
	"namewatch/utils/database"

	"github.com/bwmarrin/discordgo"
)

const (
	wordCacheTTL = time.Minute // how long edits to the stored word lists take to reach the classifier
	restTimeout  = 30 * time.Second
)

type Bot struct {
	Session    *discordgo.Session
	Platform   platform.Platform
	Store      *database.Store
	Words      *policy.CachedSource
	Guard      *enforce.Guard
	Decisions  *decision.Manager
	Reconciler *scanner.Reconciler

	config *model.Config
	ctx    context.Context
	cancel context.CancelFunc
}

func (b *Bot) GetConfig() *model.Config {
	return b.config
}

// Context is cancelled when the bot shuts down.
func (b *Bot) Context() context.Context {
	return b.ctx
}

// New wires the engine around a Discord session. The gateway is not opened until Run.
func New(cfg *model.Config, store *database.Store) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return nil, err
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildBans | discordgo.IntentsGuildMessageReactions
	// BeforeUpdate on member updates needs the state cache
	dg.StateEnabled = true
	dg.Client = utils.NewHTTPClient(restTimeout)

	b := Assemble(cfg, store, platform.NewDiscord(dg))
	b.Session = dg
	return b, nil
}

// Assemble builds every component on top of plat.
func Assemble(cfg *model.Config, store *database.Store, plat platform.Platform) *Bot {
	ctx, cancel := context.WithCancel(context.Background())
	words := policy.NewCachedSource(policy.LoaderFunc(store.ListWords), wordCacheTTL)
	enf := enforce.NewEnforcer(plat, store, cfg.Guard)
	guard := enforce.NewGuard(enf, policy.NewClassifier(words), store, plat, utils.NewMemberLocks(), cfg.Guard)
	decisions := decision.NewManager(ctx, plat, cfg.Guard, guard.Dispatch)
	guard.SetReviewer(decisions)

	return &Bot{
		Platform:   plat,
		Store:      store,
		Words:      words,
		Guard:      guard,
		Decisions:  decisions,
		Reconciler: scanner.NewReconciler(guard, store, plat, cfg.Guard, cfg.LogChannelID),
		config:     cfg,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// SeedWords stores the configured word lists. Words already stored are kept as they are.
func SeedWords(ctx context.Context, store *database.Store, guard model.GuardConfig) error {
	n, err := store.SeedWords(ctx, policy.Merge(guard.StandardWords, guard.EscalateWords))
	if err != nil {
		return fmt.Errorf("seeding forbidden words: %w", err)
	}
	if n > 0 {
		log.Printf("Seeded %d forbidden words from configuration", n)
	}
	return nil
}

// prepareWords seeds the configured lists and refuses to start without both tiers.
func (b *Bot) prepareWords() error {
	if err := SeedWords(b.ctx, b.Store, b.config.Guard); err != nil {
		return err
	}
	b.Words.Invalidate()
	if err := policy.CheckLists(b.ctx, b.Words); err != nil {
		return fmt.Errorf("forbidden word lists must have both tiers configured or stored: %w", err)
	}
	return nil
}

func (b *Bot) Close() {
	log.Println("Gracefully shutting down.")
	if n := b.Decisions.Len(); n > 0 {
		log.Printf("Closing %d open reviews without action", n)
	}
	b.cancel()
	b.Decisions.Wait()
	if b.Session != nil {
		b.Session.Close()
	}
	if err := b.Store.Close(); err != nil {
		log.Printf("Error closing database: %v", err)
	}
}
