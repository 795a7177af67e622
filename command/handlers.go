package command

import (
	"context"

	"github.com/goliatone/go-authflow/core"
	gocmd "github.com/goliatone/go-command"
)

type InitiateCommand struct {
	service core.FlowService
}

func NewInitiateCommand(service core.FlowService) *InitiateCommand {
	return &InitiateCommand{service: service}
}

func (c *InitiateCommand) Execute(ctx context.Context, msg InitiateMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: flow service is required")
	}
	out, err := c.service.Initiate(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CompleteCallbackCommand struct {
	service core.FlowService
}

func NewCompleteCallbackCommand(service core.FlowService) *CompleteCallbackCommand {
	return &CompleteCallbackCommand{service: service}
}

func (c *CompleteCallbackCommand) Execute(ctx context.Context, msg CompleteCallbackMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: flow service is required")
	}
	out, err := c.service.CompleteCallback(ctx, msg.Code, msg.State)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CompleteCallbackWithTokenCommand struct {
	service core.FlowService
}

func NewCompleteCallbackWithTokenCommand(service core.FlowService) *CompleteCallbackWithTokenCommand {
	return &CompleteCallbackWithTokenCommand{service: service}
}

func (c *CompleteCallbackWithTokenCommand) Execute(ctx context.Context, msg CompleteCallbackWithTokenMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: flow service is required")
	}
	out, err := c.service.CompleteCallbackWithToken(ctx, msg.Code, msg.State, msg.Credential)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DisconnectAccountCommand struct {
	service core.FlowService
}

func NewDisconnectAccountCommand(service core.FlowService) *DisconnectAccountCommand {
	return &DisconnectAccountCommand{service: service}
}

func (c *DisconnectAccountCommand) Execute(ctx context.Context, msg DisconnectAccountMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: flow service is required")
	}
	return c.service.DisconnectAccount(ctx, msg.Provider, msg.Email)
}

type DisconnectProviderCommand struct {
	service core.FlowService
}

func NewDisconnectProviderCommand(service core.FlowService) *DisconnectProviderCommand {
	return &DisconnectProviderCommand{service: service}
}

func (c *DisconnectProviderCommand) Execute(ctx context.Context, msg DisconnectProviderMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: flow service is required")
	}
	return c.service.DisconnectProvider(ctx, msg.Provider)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
