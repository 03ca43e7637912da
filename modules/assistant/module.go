package assistant

import (
	"github.com/redis/go-redis/v9"

	"github.com/iota-uz/provisioning-sdk/modules/assistant/domain/entities/conversation"
	"github.com/iota-uz/provisioning-sdk/modules/assistant/infrastructure/cache"
	"github.com/iota-uz/provisioning-sdk/modules/assistant/infrastructure/llm"
	"github.com/iota-uz/provisioning-sdk/modules/assistant/infrastructure/persistence"
	"github.com/iota-uz/provisioning-sdk/modules/assistant/presentation/controllers"
	"github.com/iota-uz/provisioning-sdk/modules/assistant/services"
	"github.com/iota-uz/provisioning-sdk/modules/provisioning/infrastructure/backend"
	"github.com/iota-uz/provisioning-sdk/pkg/application"
	"github.com/iota-uz/provisioning-sdk/pkg/configuration"
)

type ModuleOptions struct {
	// Asker and Repository override what configuration would build.
	Asker      services.Asker
	Repository conversation.Repository
}

func NewModule(opts *ModuleOptions) application.Module {
	if opts == nil {
		opts = &ModuleOptions{}
	}
	return &Module{options: opts}
}

type Module struct {
	options *ModuleOptions
}

func (m *Module) Register(app application.Application) error {
	conf := app.Configuration()

	asker := m.options.Asker
	if asker == nil {
		var err error
		if asker, err = NewAsker(conf); err != nil {
			return err
		}
	}
	repo := m.options.Repository
	if repo == nil {
		repo = NewRepository(conf)
	}

	app.RegisterServices(services.NewChatService(repo, asker))
	app.RegisterControllers(controllers.NewAssistantController(app))
	return nil
}

func (m *Module) Name() string {
	return "assistant"
}

// NewAsker picks the backend proxy or a direct OpenAI client by
// ASSISTANT_MODE.
func NewAsker(conf *configuration.Configuration) (services.Asker, error) {
	opts := conf.Assistant
	if opts.Mode != configuration.AssistantModeOpenAI {
		client, err := backend.NewFromConfiguration(conf)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	var replyCache cache.Cache
	if opts.CacheEnabled {
		replyCache = cache.NewRedisCache(newRedisClient(conf.RedisURL), opts.CachePrefix, opts.CacheTTL)
	}
	return llm.NewOpenAIAsker(llm.Config{
		APIKey:       opts.OpenAIKey,
		BaseURL:      opts.BaseURL,
		Model:        opts.Model,
		SystemPrompt: opts.SystemPrompt,
		Temperature:  opts.Temperature,
		MaxTokens:    opts.MaxTokens,
		Cache:        replyCache,
	}), nil
}

func NewRepository(conf *configuration.Configuration) conversation.Repository {
	if conf.Assistant.Store == "redis" {
		return persistence.NewRedisConversationRepository(newRedisClient(conf.RedisURL), "")
	}
	return persistence.NewInmemConversationRepository()
}

// newRedisClient accepts either a redis:// URL or a bare host:port.
func newRedisClient(url string) *redis.Client {
	opts, err := redis.ParseURL(url)
	if err != nil {
		opts = &redis.Options{Addr: url}
	}
	return redis.NewClient(opts)
}
