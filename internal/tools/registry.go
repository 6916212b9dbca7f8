// Package tools holds the MCP capability providers and the registry the
// server dispatches through.
package tools

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"mcpd/internal/mcp"
	"mcpd/internal/shared/logger"
)

var (
	ErrToolNotFound     = errors.New("tool not found")
	ErrResourceNotFound = errors.New("resource not found")
)

// Provider exposes a set of tools to MCP clients.
type Provider interface {
	ListTools(ctx context.Context) ([]mcp.Tool, error)
	CallTool(ctx context.Context, params mcp.ToolCallParams) (*mcp.ToolCallResult, error)
}

// ResourceProvider exposes readable resources to MCP clients.
type ResourceProvider interface {
	ListResources(ctx context.Context) ([]mcp.Resource, error)
	ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error)
}

// Registry aggregates providers and routes calls to the one that owns
// the requested tool or resource.
type Registry struct {
	mu        sync.RWMutex
	providers []Provider
	resources []ResourceProvider
	log       zerolog.Logger
}

func NewRegistry() *Registry {
	return &Registry{
		log: logger.WithComponent("tools"),
	}
}

func (r *Registry) RegisterProvider(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = append(r.providers, p)
}

func (r *Registry) RegisterResourceProvider(p ResourceProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resources = append(r.resources, p)
}

// ListTools collects the tools of every registered provider.
func (r *Registry) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var allTools []mcp.Tool
	for _, provider := range r.providers {
		tools, err := provider.ListTools(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list tools: %w", err)
		}
		allTools = append(allTools, tools...)
	}
	return allTools, nil
}

// CallTool routes the call to the provider that advertises the tool.
func (r *Registry) CallTool(ctx context.Context, params mcp.ToolCallParams) (*mcp.ToolCallResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, provider := range r.providers {
		tools, err := provider.ListTools(ctx)
		if err != nil {
			continue
		}
		for _, tool := range tools {
			if tool.Name == params.Name {
				r.log.Debug().Str("tool", params.Name).Msg("dispatching tool call")
				return provider.CallTool(ctx, params)
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrToolNotFound, params.Name)
}

// ListResources collects the resources of every registered provider.
func (r *Registry) ListResources(ctx context.Context) ([]mcp.Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var allResources []mcp.Resource
	for _, provider := range r.resources {
		resources, err := provider.ListResources(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list resources: %w", err)
		}
		allResources = append(allResources, resources...)
	}
	return allResources, nil
}

// ReadResource routes the read to the provider that advertises the URI.
func (r *Registry) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, provider := range r.resources {
		resources, err := provider.ListResources(ctx)
		if err != nil {
			continue
		}
		for _, resource := range resources {
			if resource.URI == uri {
				return provider.ReadResource(ctx, uri)
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, uri)
}
