// Package loam reads contracts from a directory of documents through the
// Loam library. Each Markdown, JSON or YAML document declares one contract
// in its frontmatter; the Markdown body doubles as the description.
//
//	---
//	params:
//	  - name: arg_a
//	    type: List[int]
//	returns: List[str]
//	---
//	Converts every integer to its decimal text.
package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/contract/pkg/manifest"
	"github.com/aretw0/contract/pkg/schema"
	"github.com/aretw0/loam"
)

// Source adapts a Loam repository to the ports.Source interface.
type Source struct {
	Repo *loam.TypedRepository[ContractMetadata]
}

// New creates a new Loam source.
func New(repo *loam.TypedRepository[ContractMetadata]) *Source {
	return &Source{
		Repo: repo,
	}
}

// Open initializes a read-only Loam repository rooted at dir.
func Open(dir string) (*Source, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	// Strict mode keeps numbers consistent across the Markdown and JSON
	// adapters; read-only mode avoids Loam's sandbox in dev mode.
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[ContractMetadata](repo)), nil
}

// Load reads every document, in id order, into one manifest.
func (s *Source) Load(ctx context.Context) (*manifest.Manifest, error) {
	docs, err := s.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })

	out := &manifest.Manifest{}
	seen := make(map[string]string)
	var errs []error
	for _, doc := range docs {
		meta := doc.Data
		part := &manifest.Manifest{Types: meta.Types}

		if !meta.typesOnly() {
			name := meta.Name
			if name == "" {
				name = trimExtension(doc.ID)
			}
			if existing, ok := seen[name]; ok {
				errs = append(errs, fmt.Errorf("%w: contract %q is defined in both '%s' and '%s'", manifest.ErrInvalid, name, existing, doc.ID))
				continue
			}
			seen[name] = doc.ID

			description := meta.Description
			if description == "" {
				// List only carries frontmatter; the body needs a Get.
				body, err := s.body(ctx, doc.ID)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				description = body
			}
			part.Contracts = []manifest.Entry{{
				Name:        name,
				Description: description,
				Params:      meta.Params,
				Returns:     meta.Returns,
			}}
		}

		if err := out.Merge(part); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", doc.ID, err))
		}
	}
	if err := schema.Join(errs); err != nil {
		return nil, err
	}
	return out, nil
}

// body returns the trimmed content of the document id.
func (s *Source) body(ctx context.Context, id string) (string, error) {
	full, err := s.Repo.Get(ctx, id)
	if err != nil {
		return "", fmt.Errorf("loam get failed for %s: %w", id, err)
	}
	return strings.TrimSpace(full.Content), nil
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}

// Watch implements ports.Watchable.
func (s *Source) Watch(ctx context.Context) (<-chan string, error) {
	events, err := s.Repo.Watch(ctx, "**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan string, 1)

	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				// Loam debounces bursts itself; pass the changed id up.
				select {
				case ch <- evt.ID:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}
