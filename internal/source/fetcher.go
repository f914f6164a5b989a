package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"git.home.luguber.info/inful/buildtrigger/internal/config"
	"git.home.luguber.info/inful/buildtrigger/internal/logfields"
	"git.home.luguber.info/inful/buildtrigger/internal/observability"
	"git.home.luguber.info/inful/buildtrigger/internal/workspace"
)

// Fetcher obtains a fresh copy of the project at sourceLocation into destination.
type Fetcher interface {
	Fetch(ctx context.Context, sourceLocation, destination string) error
}

// GitFetcher clones git repositories with go-git.
type GitFetcher struct {
	branch   string
	depth    int
	auth     *config.AuthConfig
	progress io.Writer
}

// NewGitFetcher creates a fetcher using the branch, depth and auth settings of src.
// The URL in src is not used; callers pass the location to Fetch.
func NewGitFetcher(src config.SourceConfig) *GitFetcher {
	return &GitFetcher{branch: src.Branch, depth: src.Depth, auth: src.Auth}
}

// WithProgress streams clone progress to w.
func (f *GitFetcher) WithProgress(w io.Writer) *GitFetcher { f.progress = w; return f }

// Fetch wipes destination and clones sourceLocation into it.
func (f *GitFetcher) Fetch(ctx context.Context, sourceLocation, destination string) error {
	if err := workspace.Reset(destination); err != nil {
		return &FetchError{Location: sourceLocation, Reason: ReasonFilesystem, Err: err}
	}

	opts := &git.CloneOptions{URL: sourceLocation, Progress: f.progress}
	if f.branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(f.branch)
		opts.SingleBranch = true
	}
	if f.depth > 0 {
		opts.Depth = f.depth
	}
	if f.auth != nil {
		auth, err := authMethod(f.auth)
		if err != nil {
			return &FetchError{Location: sourceLocation, Reason: ReasonAuth, Err: err}
		}
		opts.Auth = auth
	}

	start := time.Now()
	observability.DebugContext(ctx, "Cloning source", logfields.URL(sourceLocation), logfields.Path(destination), slog.String("branch", f.branch))
	repo, err := git.PlainCloneContext(ctx, destination, false, opts)
	if err != nil {
		return classifyCloneError(sourceLocation, err)
	}

	attrs := []slog.Attr{logfields.URL(sourceLocation), logfields.Path(destination), logfields.Duration(time.Since(start))}
	if ref, herr := repo.Head(); herr == nil {
		attrs = append(attrs, slog.String("commit", ref.Hash().String()[:8]))
	}
	observability.InfoContext(ctx, "Source cloned", attrs...)
	return nil
}

// authMethod creates go-git authentication from config.
func authMethod(auth *config.AuthConfig) (transport.AuthMethod, error) {
	switch auth.Type {
	case config.AuthTypeNone, "":
		return nil, nil

	case config.AuthTypeSSH:
		keyPath := auth.KeyPath
		if keyPath == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("failed to resolve home directory for SSH key: %w", err)
			}
			keyPath = filepath.Join(home, ".ssh", "id_rsa")
		}
		keys, err := ssh.NewPublicKeysFromFile("git", keyPath, auth.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to load SSH key from %s: %w", keyPath, err)
		}
		return keys, nil

	case config.AuthTypeToken:
		if auth.Token == "" {
			return nil, fmt.Errorf("token authentication requires a token")
		}
		username := auth.Username
		if username == "" {
			username = "token"
		}
		return &http.BasicAuth{Username: username, Password: auth.Token}, nil

	case config.AuthTypeBasic:
		if auth.Username == "" || auth.Password == "" {
			return nil, fmt.Errorf("basic authentication requires username and password")
		}
		return &http.BasicAuth{Username: auth.Username, Password: auth.Password}, nil

	default:
		return nil, fmt.Errorf("unsupported authentication type: %s", auth.Type)
	}
}
