package authflow

import (
	"fmt"
	"strings"

	authflowcommand "github.com/goliatone/go-authflow/command"
	"github.com/goliatone/go-authflow/core"
	"github.com/goliatone/go-authflow/credstore"
	"github.com/goliatone/go-authflow/dispatch"
	"github.com/goliatone/go-authflow/identity"
	authflowquery "github.com/goliatone/go-authflow/query"
	flatstore "github.com/goliatone/go-authflow/store/flat"
	sqlstore "github.com/goliatone/go-authflow/store/sql"
	"github.com/goliatone/go-authflow/transport"
)

// Commands groups the go-command handlers for every flow mutation.
type Commands struct {
	Initiate                  *authflowcommand.InitiateCommand
	CompleteCallback          *authflowcommand.CompleteCallbackCommand
	CompleteCallbackWithToken *authflowcommand.CompleteCallbackWithTokenCommand
	DisconnectAccount         *authflowcommand.DisconnectAccountCommand
	DisconnectProvider        *authflowcommand.DisconnectProviderCommand
}

// Queries groups the read-side handlers.
type Queries struct {
	CheckStatus  *authflowquery.CheckStatusQuery
	ListAccounts *authflowquery.ListAccountsQuery
}

// Facade bundles a flow service with its command and query handlers.
type Facade struct {
	service  core.FlowService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	accountLister authflowquery.AccountLister
}

// WithAccountLister overrides where the account listing query reads from.
// By default the facade resolves the service's credential store.
func WithAccountLister(lister authflowquery.AccountLister) FacadeOption {
	return func(options *facadeOptions) {
		options.accountLister = lister
	}
}

func NewFacade(service core.FlowService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("authflow: flow service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	lister := cfg.accountLister
	if lister == nil {
		lister = resolveAccountLister(service)
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		Initiate:                  authflowcommand.NewInitiateCommand(service),
		CompleteCallback:          authflowcommand.NewCompleteCallbackCommand(service),
		CompleteCallbackWithToken: authflowcommand.NewCompleteCallbackWithTokenCommand(service),
		DisconnectAccount:         authflowcommand.NewDisconnectAccountCommand(service),
		DisconnectProvider:        authflowcommand.NewDisconnectProviderCommand(service),
	}
	facade.queries = Queries{
		CheckStatus:  authflowquery.NewCheckStatusQuery(service),
		ListAccounts: authflowquery.NewListAccountsQuery(lister),
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func resolveAccountLister(service core.FlowService) authflowquery.AccountLister {
	if lister, ok := service.(authflowquery.AccountLister); ok {
		return lister
	}
	provider, ok := service.(interface {
		Dependencies() core.ServiceDependencies
	})
	if !ok {
		return nil
	}
	store := provider.Dependencies().CredentialStore
	if store == nil {
		return nil
	}
	return store
}

func (f *Facade) Service() core.FlowService {
	if f == nil {
		return nil
	}
	return f.service
}

// AppConfig wires a complete flow stack: transport to the collaborator, the
// tiered credential store, dispatch, and identity resolution. Everything
// past CollaboratorURL is optional and falls back to in-memory behavior.
type AppConfig struct {
	Config Config

	// CollaboratorURL points at the service holding the provider secrets.
	CollaboratorURL string
	// CollaboratorHeaders travel with every collaborator request.
	CollaboratorHeaders map[string]string

	// Persistence enables the structured credential tier and the durable
	// pending store. Accepts a *bun.DB or anything exposing DB() *bun.DB.
	Persistence any
	// CredentialDir enables the flat single-slot tier.
	CredentialDir string
	// Hooks let the host take over credential custody per operation.
	Hooks credstore.Hooks

	WindowOpener dispatch.WindowOpener
	Navigator    dispatch.Navigator

	Providers []ProviderConfig

	// Options are appended after the wiring options and may override any of
	// them.
	Options []Option
}

// App is the assembled stack. Callers typically use Service for the flow
// API, Coordinator.Complete to feed popup callbacks, and Facade for
// go-command routing.
type App struct {
	Service     *Service
	Facade      *Facade
	Store       *credstore.Tiered
	Policy      *core.PersistencePolicy
	Coordinator *dispatch.Coordinator
	Transport   *transport.Client
}

func NewApp(cfg AppConfig) (*App, error) {
	if strings.TrimSpace(cfg.CollaboratorURL) == "" {
		return nil, fmt.Errorf("authflow: collaborator url is required")
	}

	policy := core.NewPersistencePolicy()

	client, err := transport.NewClient(transport.Config{
		BaseURL:         cfg.CollaboratorURL,
		Headers:         cfg.CollaboratorHeaders,
		StorageObserver: policy.Observer(),
	})
	if err != nil {
		return nil, err
	}

	storeOptions := []credstore.Option{
		credstore.WithPolicy(policy),
		credstore.WithHooks(cfg.Hooks),
	}

	var durablePending core.PendingStore
	if cfg.Persistence != nil {
		factory := sqlstore.NewRepositoryFactory()
		if ttl := cfg.Config.PendingTTL; ttl > 0 {
			factory = factory.WithPendingTTL(ttl)
		}
		if err := factory.BuildStores(cfg.Persistence); err != nil {
			return nil, err
		}
		storeOptions = append(storeOptions, credstore.WithStructuredStore(factory.AccountStore()))
		durablePending = factory.PendingStore()
	}

	if dir := strings.TrimSpace(cfg.CredentialDir); dir != "" {
		flat, err := flatstore.NewFileStore(dir)
		if err != nil {
			return nil, err
		}
		storeOptions = append(storeOptions, credstore.WithFlatStore(flat))
	}

	store := credstore.NewTiered(storeOptions...)

	coordinator := dispatch.NewCoordinator(
		dispatch.WithWindowOpener(cfg.WindowOpener),
		dispatch.WithNavigator(cfg.Navigator),
	)

	registry := core.NewProviderConfigRegistry()
	for _, provider := range cfg.Providers {
		if err := registry.Register(provider); err != nil {
			return nil, err
		}
	}

	options := []Option{
		WithAuthorizeClient(client),
		WithTokenExchanger(client),
		WithEmailResolver(identity.DefaultResolver()),
		WithCredentialStore(store),
		WithDispatcher(coordinator),
		WithPersistencePolicy(policy),
		WithProviderConfigRegistry(registry),
	}
	if durablePending != nil {
		options = append(options, WithDurablePendingStore(durablePending))
	}
	options = append(options, cfg.Options...)

	service, err := NewService(cfg.Config, options...)
	if err != nil {
		return nil, err
	}

	facade, err := NewFacade(service)
	if err != nil {
		return nil, err
	}

	return &App{
		Service:     service,
		Facade:      facade,
		Store:       store,
		Policy:      policy,
		Coordinator: coordinator,
		Transport:   client,
	}, nil
}

// Close releases the dispatcher; popup dispatches still in flight observe a
// cancellation.
func (a *App) Close() error {
	if a == nil || a.Service == nil {
		return nil
	}
	return a.Service.Close()
}
