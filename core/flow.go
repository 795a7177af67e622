package core

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// Service orchestrates the authorization-code-with-PKCE flow: it generates the
// challenge, dispatches the browser, consumes the callback, exchanges the code
// through the remote collaborator, and hands the credential to the tiered
// store. All collaborators arrive through Options; the service itself holds no
// provider secrets.
type Service struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorFactory    ErrorFactory
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	authorizeClient AuthorizeClient
	tokenExchanger  TokenExchanger
	emailResolver   EmailResolver
	pendingStore    PendingStore
	durableStore    PendingStore
	credentialStore CredentialStore
	dispatcher      Dispatcher
	verifierCache   VerifierCache
	policy          *PersistencePolicy
	registry        *ProviderConfigRegistry
	callbackHook    CallbackHook
	now             func() time.Time
}

type ServiceDependencies struct {
	Logger          Logger
	LoggerProvider  LoggerProvider
	MetricsRecorder MetricsRecorder
	ErrorFactory    ErrorFactory
	ErrorMapper     ErrorMapper
	ConfigProvider  ConfigProvider
	OptionsResolver OptionsResolver
	AuthorizeClient AuthorizeClient
	TokenExchanger  TokenExchanger
	EmailResolver   EmailResolver
	PendingStore    PendingStore
	DurableStore    PendingStore
	CredentialStore CredentialStore
	Dispatcher      Dispatcher
	VerifierCache   VerifierCache
	Policy          *PersistencePolicy
	Registry        *ProviderConfigRegistry
}

func NewService(cfg Config, options ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("authflow", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("authflow"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.registry == nil {
		builder.registry = NewProviderConfigRegistry()
	}
	if builder.policy == nil {
		builder.policy = NewPersistencePolicy()
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.pendingStore == nil {
		builder.pendingStore = NewMemoryPendingStore(finalConfig.pendingTTL())
	}
	if builder.verifierCache == nil {
		builder.verifierCache = NewMemoryVerifierCache(finalConfig.pendingTTL())
	}

	return &Service{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorFactory:    builder.errorFactory,
		errorMapper:     builder.errorMapper,
		configProvider:  builder.configProvider,
		optionsResolver: builder.optionsResolver,
		authorizeClient: builder.authorizeClient,
		tokenExchanger:  builder.tokenExchanger,
		emailResolver:   builder.emailResolver,
		pendingStore:    builder.pendingStore,
		durableStore:    builder.durableStore,
		credentialStore: builder.credentialStore,
		dispatcher:      builder.dispatcher,
		verifierCache:   builder.verifierCache,
		policy:          builder.policy,
		registry:        builder.registry,
		callbackHook:    builder.callbackHook,
		now:             func() time.Time { return time.Now().UTC() },
	}, nil
}

func Setup(cfg Config, options ...Option) (*Service, error) {
	return NewService(cfg, options...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:          s.logger,
		LoggerProvider:  s.loggerProvider,
		MetricsRecorder: s.metricsRecorder,
		ErrorFactory:    s.errorFactory,
		ErrorMapper:     s.errorMapper,
		ConfigProvider:  s.configProvider,
		OptionsResolver: s.optionsResolver,
		AuthorizeClient: s.authorizeClient,
		TokenExchanger:  s.tokenExchanger,
		EmailResolver:   s.emailResolver,
		PendingStore:    s.pendingStore,
		DurableStore:    s.durableStore,
		CredentialStore: s.credentialStore,
		Dispatcher:      s.dispatcher,
		VerifierCache:   s.verifierCache,
		Policy:          s.policy,
		Registry:        s.registry,
	}
}

// Policy exposes the shared persistence policy so the transport layer can wire
// its server-storage observer to the same instance the credential store honors.
func (s *Service) Policy() *PersistencePolicy {
	if s == nil {
		return nil
	}
	return s.policy
}

func (s *Service) Close() error {
	if s == nil || s.dispatcher == nil {
		return nil
	}
	return s.dispatcher.Close()
}

// Initiate starts one authorization attempt. In popup mode it blocks through
// the entire cycle and returns with the stored credential; in redirect mode it
// returns as soon as navigation is dispatched and the flow resumes later via
// CompleteCallback against the durable pending store.
func (s *Service) Initiate(ctx context.Context, req InitiateRequest) (result InitiateResult, err error) {
	startedAt := time.Now().UTC()
	mode := s.resolveMode(req.Mode)
	fields := map[string]any{
		"provider": req.Provider,
		"mode":     string(mode),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "initiate", err, fields)
	}()

	providerID := strings.TrimSpace(strings.ToLower(req.Provider))
	if providerID == "" {
		err = s.mapError(ErrProviderRequired)
		return InitiateResult{}, err
	}
	if s.authorizeClient == nil {
		err = s.mapError(fmt.Errorf("core: authorize client is required"))
		return InitiateResult{}, err
	}
	if s.credentialStore == nil {
		err = s.mapError(fmt.Errorf("core: credential store is required"))
		return InitiateResult{}, err
	}

	scopes := append([]string(nil), req.Scopes...)
	redirectURI := strings.TrimSpace(req.RedirectURI)
	if providerConfig, ok := s.registry.Get(providerID); ok {
		if len(scopes) == 0 {
			scopes = append([]string(nil), providerConfig.Scopes...)
		}
		if redirectURI == "" {
			redirectURI = providerConfig.DefaultRedirect
		}
	}

	challenge, err := NewChallenge(req.ReturnURL)
	if err != nil {
		err = s.mapError(err)
		return InitiateResult{}, err
	}
	fields["state"] = challenge.State

	pending := PendingAuthorization{
		Provider:       providerID,
		State:          challenge.State,
		CodeVerifier:   challenge.CodeVerifier,
		CodeChallenge:  challenge.CodeChallenge,
		RedirectURI:    redirectURI,
		ReturnURL:      strings.TrimSpace(req.ReturnURL),
		FrontendOrigin: strings.TrimSpace(req.FrontendOrigin),
		Status:         FlowStatusIdle,
		InitiatedAt:    s.now(),
	}
	if err = pending.TransitionTo(FlowStatusInitiated); err != nil {
		err = s.mapError(err)
		return InitiateResult{}, err
	}

	authorizeReq := AuthorizeRequest{
		Provider:            providerID,
		State:               challenge.State,
		CodeChallenge:       challenge.CodeChallenge,
		CodeChallengeMethod: CodeChallengeMethodS256,
		RedirectURI:         redirectURI,
		FrontendOrigin:      pending.FrontendOrigin,
		Scopes:              scopes,
	}
	if mode == DispatchModeRedirect {
		// The raw verifier leaves the process only on this leg; the remote
		// collaborator parks it until the callback comes back cross-origin.
		authorizeReq.CodeVerifier = challenge.CodeVerifier
	}

	authorizeRes, err := s.authorizeClient.BuildAuthorizationURL(ctx, authorizeReq)
	if err != nil {
		err = s.mapError(err)
		return InitiateResult{}, err
	}
	authorizationURL := strings.TrimSpace(authorizeRes.AuthorizationURL)
	if authorizationURL == "" {
		err = s.mapError(ErrEmptyAuthorizationURL)
		return InitiateResult{}, err
	}
	if parsed, parseErr := url.Parse(authorizationURL); parseErr != nil || parsed.Scheme == "" || parsed.Host == "" {
		err = s.mapError(fmt.Errorf("%w: %s", ErrInvalidAuthorizationURL, authorizationURL))
		return InitiateResult{}, err
	}

	if err = s.savePending(ctx, pending, mode); err != nil {
		err = s.mapError(err)
		return InitiateResult{}, err
	}

	result = InitiateResult{
		Provider:         providerID,
		State:            challenge.State,
		AuthorizationURL: authorizationURL,
	}

	if s.dispatcher == nil {
		return result, nil
	}

	if err = s.transitionPending(ctx, pending.State, FlowStatusDispatched, mode); err != nil {
		err = s.mapError(err)
		return InitiateResult{}, err
	}

	completion, dispatchErr := s.dispatcher.Dispatch(ctx, DispatchRequest{
		Mode:             mode,
		AuthorizationURL: authorizationURL,
		State:            challenge.State,
	})
	if dispatchErr != nil {
		s.failPending(ctx, pending.State, mode)
		err = s.mapError(dispatchErr)
		return InitiateResult{}, err
	}

	if mode == DispatchModeRedirect {
		return result, nil
	}

	if completion.Err != nil {
		s.failPending(ctx, pending.State, mode)
		err = s.mapError(completion.Err)
		return InitiateResult{}, err
	}

	callbackRes, err := s.CompleteCallback(ctx, completion.Code, completion.State)
	if err != nil {
		return InitiateResult{}, err
	}
	credential := callbackRes.Credential
	result.Credential = &credential
	return result, nil
}

// CompleteCallback consumes the state, exchanges the authorization code, and
// stores the resulting credential. The state is consumed exactly once; a
// second call with the same state reports an unknown state.
func (s *Service) CompleteCallback(ctx context.Context, code string, state string) (result CallbackResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		if result.Provider != "" {
			fields["provider"] = result.Provider
		}
		s.observeOperation(ctx, startedAt, "complete_callback", err, fields)
	}()

	code = strings.TrimSpace(code)
	state = strings.TrimSpace(state)
	if code == "" || state == "" {
		err = s.mapError(fmt.Errorf("core: callback code and state are required"))
		return CallbackResult{}, err
	}
	if s.tokenExchanger == nil {
		err = s.mapError(fmt.Errorf("core: token exchanger is required"))
		return CallbackResult{}, err
	}

	pending, err := s.consumePending(ctx, state)
	if err != nil {
		err = s.mapError(err)
		return CallbackResult{}, err
	}
	result.Provider = pending.Provider

	s.runCallbackHook(ctx, pending.Provider, code, state)

	_ = pending.TransitionTo(FlowStatusReturned)

	credential, exchangeErr := s.tokenExchanger.Exchange(ctx, ExchangeRequest{
		Provider:     pending.Provider,
		Code:         code,
		CodeVerifier: pending.CodeVerifier,
		State:        state,
	})
	if exchangeErr != nil {
		_ = pending.TransitionTo(FlowStatusFailed)
		err = s.mapError(fmt.Errorf("%w: %v", ErrExchangeFailed, exchangeErr))
		return CallbackResult{Provider: pending.Provider}, err
	}
	_ = pending.TransitionTo(FlowStatusExchanged)

	stored, storeErr := s.finalizeCredential(ctx, pending.Provider, credential)
	if storeErr != nil {
		_ = pending.TransitionTo(FlowStatusFailed)
		err = s.mapError(storeErr)
		return CallbackResult{Provider: pending.Provider}, err
	}
	_ = pending.TransitionTo(FlowStatusStored)

	return CallbackResult{Provider: pending.Provider, Credential: stored}, nil
}

// CompleteCallbackWithToken finishes a flow whose code exchange already
// happened at the remote collaborator. The state must still resolve to a
// pending authorization or a cached verifier entry; the code itself is only
// logged through the callback hook.
func (s *Service) CompleteCallbackWithToken(ctx context.Context, code string, state string, credential ProviderCredential) (result CallbackResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		if result.Provider != "" {
			fields["provider"] = result.Provider
		}
		s.observeOperation(ctx, startedAt, "complete_callback_with_token", err, fields)
	}()

	state = strings.TrimSpace(state)
	if state == "" {
		err = s.mapError(fmt.Errorf("core: callback state is required"))
		return CallbackResult{}, err
	}

	pending, err := s.consumePending(ctx, state)
	if err != nil {
		err = s.mapError(err)
		return CallbackResult{}, err
	}
	result.Provider = pending.Provider

	s.runCallbackHook(ctx, pending.Provider, strings.TrimSpace(code), state)

	_ = pending.TransitionTo(FlowStatusReturned)
	_ = pending.TransitionTo(FlowStatusExchanged)

	stored, storeErr := s.finalizeCredential(ctx, pending.Provider, credential)
	if storeErr != nil {
		_ = pending.TransitionTo(FlowStatusFailed)
		err = s.mapError(storeErr)
		return CallbackResult{Provider: pending.Provider}, err
	}
	_ = pending.TransitionTo(FlowStatusStored)

	return CallbackResult{Provider: pending.Provider, Credential: stored}, nil
}

// CheckStatus reports whether a credential exists. Tokens are never
// re-validated against the provider here; expiry is the caller's concern.
func (s *Service) CheckStatus(ctx context.Context, provider string, email string) (status Status, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"provider": provider}
	defer func() {
		s.observeOperation(ctx, startedAt, "check_status", err, fields)
	}()

	providerID := strings.TrimSpace(strings.ToLower(provider))
	if providerID == "" {
		err = s.mapError(ErrProviderRequired)
		return Status{}, err
	}
	if s.credentialStore == nil {
		err = s.mapError(fmt.Errorf("core: credential store is required"))
		return Status{}, err
	}

	credential, getErr := s.credentialStore.GetCredential(ctx, providerID, strings.TrimSpace(email))
	if getErr != nil {
		err = s.mapError(getErr)
		return Status{}, err
	}
	if credential == nil || strings.TrimSpace(credential.AccessToken) == "" {
		return Status{}, nil
	}
	return Status{
		Authorized: true,
		Scopes:     append([]string(nil), credential.Scopes...),
		ExpiresAt:  credential.ExpiresAt,
	}, nil
}

// DisconnectAccount removes one stored account. Removal is idempotent: a
// second disconnect of the same account succeeds without effect.
func (s *Service) DisconnectAccount(ctx context.Context, provider string, email string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"provider": provider}
	defer func() {
		s.observeOperation(ctx, startedAt, "disconnect_account", err, fields)
	}()

	providerID := strings.TrimSpace(strings.ToLower(provider))
	if providerID == "" {
		err = s.mapError(ErrProviderRequired)
		return err
	}
	if s.credentialStore == nil {
		err = s.mapError(fmt.Errorf("core: credential store is required"))
		return err
	}
	if removeErr := s.credentialStore.RemoveCredential(ctx, providerID, strings.TrimSpace(email)); removeErr != nil {
		err = s.mapError(removeErr)
		return err
	}
	return nil
}

// DisconnectProvider removes every stored account for the provider.
func (s *Service) DisconnectProvider(ctx context.Context, provider string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"provider": provider}
	defer func() {
		s.observeOperation(ctx, startedAt, "disconnect_provider", err, fields)
	}()

	providerID := strings.TrimSpace(strings.ToLower(provider))
	if providerID == "" {
		err = s.mapError(ErrProviderRequired)
		return err
	}
	if s.credentialStore == nil {
		err = s.mapError(fmt.Errorf("core: credential store is required"))
		return err
	}
	if removeErr := s.credentialStore.RemoveProvider(ctx, providerID); removeErr != nil {
		err = s.mapError(removeErr)
		return err
	}
	return nil
}

func (s *Service) resolveMode(mode DispatchMode) DispatchMode {
	switch mode {
	case DispatchModePopup, DispatchModeRedirect:
		return mode
	}
	if s == nil {
		return DispatchModePopup
	}
	return s.config.defaultMode()
}

func (s *Service) savePending(ctx context.Context, pending PendingAuthorization, mode DispatchMode) error {
	if s.pendingStore != nil {
		if err := s.pendingStore.Save(ctx, pending); err != nil {
			return err
		}
	}
	// Redirect mode loses the process between legs; only a durable copy can
	// resume the flow.
	if mode == DispatchModeRedirect && s.durableStore != nil {
		if err := s.durableStore.Save(ctx, pending); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) transitionPending(ctx context.Context, state string, status FlowStatus, mode DispatchMode) error {
	if s.pendingStore == nil {
		return nil
	}
	pending, ok, err := s.pendingStore.Get(ctx, state)
	if err != nil || !ok {
		return err
	}
	if err := pending.TransitionTo(status); err != nil {
		return err
	}
	return s.savePending(ctx, pending, mode)
}

func (s *Service) failPending(ctx context.Context, state string, mode DispatchMode) {
	_ = s.transitionPending(ctx, state, FlowStatusFailed, mode)
	if s.pendingStore != nil {
		_ = s.pendingStore.Delete(ctx, state)
	}
	if mode == DispatchModeRedirect && s.durableStore != nil {
		_ = s.durableStore.Delete(ctx, state)
	}
}

// consumePending resolves the state against the in-process table first, then
// the durable store, then the verifier cache, deleting the record wherever it
// was found. Expired records are destroyed and reported as expired.
func (s *Service) consumePending(ctx context.Context, state string) (PendingAuthorization, error) {
	ttl := s.config.pendingTTL()
	now := s.now()

	for _, store := range []PendingStore{s.pendingStore, s.durableStore} {
		if store == nil {
			continue
		}
		pending, ok, err := store.Get(ctx, state)
		if err != nil {
			return PendingAuthorization{}, err
		}
		if !ok {
			continue
		}
		if deleteErr := store.Delete(ctx, state); deleteErr != nil {
			return PendingAuthorization{}, deleteErr
		}
		if s.durableStore != nil {
			_ = s.durableStore.Delete(ctx, state)
		}
		if pending.ExpiredAt(now, ttl) {
			return PendingAuthorization{}, fmt.Errorf("%w: %s", ErrFlowExpired, state)
		}
		return pending, nil
	}

	if s.verifierCache != nil {
		entry, ok, err := s.verifierCache.Retrieve(ctx, state)
		if err != nil {
			return PendingAuthorization{}, err
		}
		if ok {
			return PendingAuthorization{
				Provider:       entry.Provider,
				State:          state,
				CodeVerifier:   entry.CodeVerifier,
				FrontendOrigin: entry.FrontendOrigin,
				ReturnURL:      ReturnURLFromState(state),
				Status:         FlowStatusDispatched,
				InitiatedAt:    now,
			}, nil
		}
	}

	return PendingAuthorization{}, fmt.Errorf("%w: %s", ErrUnknownState, state)
}

func (s *Service) runCallbackHook(ctx context.Context, provider string, code string, state string) {
	if s.callbackHook == nil {
		return
	}
	if hookErr := s.callbackHook(ctx, provider, code, state); hookErr != nil {
		s.logError(ctx, "callback hook failed", map[string]any{
			"provider": provider,
			"state":    state,
			"error":    hookErr.Error(),
		})
	}
}

// finalizeCredential resolves the account email, derives the account id, and
// hands the credential to the tiered store. Email resolution is best effort;
// a failure only costs multi-account addressing.
func (s *Service) finalizeCredential(ctx context.Context, provider string, credential ProviderCredential) (ProviderCredential, error) {
	if s.credentialStore == nil {
		return ProviderCredential{}, fmt.Errorf("core: credential store is required")
	}

	credential = credential.Clone()
	if credential.ExpiresAt == nil && credential.ExpiresIn > 0 {
		expiresAt := s.now().Add(time.Duration(credential.ExpiresIn) * time.Second)
		credential.ExpiresAt = &expiresAt
	}

	email := strings.TrimSpace(credential.Email)
	if email == "" && s.emailResolver != nil {
		resolution := s.resolveEmail(ctx, provider, credential.AccessToken)
		if resolution.Err != nil {
			s.logError(ctx, "email resolution failed", map[string]any{
				"provider": provider,
				"error":    resolution.Err.Error(),
			})
		}
		email = strings.TrimSpace(resolution.OrEmpty())
	}
	credential.Email = email
	credential.AccountID = AccountID(provider, email)

	if err := s.credentialStore.SetCredential(ctx, provider, &credential, email); err != nil {
		return ProviderCredential{}, err
	}
	return credential, nil
}

// resolveEmail wraps the resolver outcome so callers only ever extract the
// default; the error is carried for logging, never propagated.
func (s *Service) resolveEmail(ctx context.Context, provider string, accessToken string) EmailResolution {
	email, err := s.emailResolver.ResolveEmail(ctx, provider, accessToken)
	return EmailResolution{Email: email, Err: err}
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

var _ FlowService = (*Service)(nil)
