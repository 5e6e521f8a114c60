// Package mcp exposes story corpus tooling to authoring assistants over the
// Model Context Protocol.
package mcp

import (
	"context"
	"fmt"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/talgya/pawnbroker/internal/mail"
	"github.com/talgya/pawnbroker/internal/story"
)

// Loader reads the corpus and the mail template ids it may reference. It is
// called on every tool invocation so edits on disk are picked up.
type Loader func(ctx context.Context) (*story.Corpus, []string, error)

// DirLoader loads the corpus under storyDir without binding variables, so
// undeclared variables are reported rather than fatal.
func DirLoader(storyDir, mailFile string) Loader {
	return func(ctx context.Context) (*story.Corpus, []string, error) {
		corpus, err := story.ReadDir(storyDir)
		if err != nil {
			return nil, nil, err
		}
		reg, err := mail.LoadRegistry(mailFile)
		if err != nil {
			return nil, nil, fmt.Errorf("load mail: %w", err)
		}
		return corpus, reg.IDs(), nil
	}
}

type Server struct {
	load Loader
	mcp  *sdk.Server
}

func NewServer(load Loader, version string) *Server {
	s := &Server{
		load: load,
		mcp: sdk.NewServer(&sdk.Implementation{
			Name:    "pawnbroker",
			Version: version,
		}, nil),
	}
	s.registerTools()
	return s
}

func (s *Server) Run(ctx context.Context, transport sdk.Transport) error {
	return s.mcp.Run(ctx, transport)
}
