package logging

import (
	"context"
	"strings"

	"github.com/goliatone/go-mirror/pkg/interfaces"
)

const (
	rootModule      = "mirror"
	syncModule      = "mirror.sync"
	converterModule = "mirror.converter"
	assetsModule    = "mirror.assets"
	sourceModule    = "mirror.source"
	storeModule     = "mirror.store"
	exportModule    = "mirror.export"
)

const (
	fieldDocumentID   = "document_id"
	fieldDocumentSlug = "slug"
	fieldSyncAction   = "sync_action"
)

// ModuleLogger returns a module-scoped logger. A missing provider yields a
// no-op logger; the module name is always attached as the "module" field.
func ModuleLogger(provider interfaces.LoggerProvider, module string) interfaces.Logger {
	if module == "" {
		module = rootModule
	}

	logger := NoOp()
	if provider != nil {
		if provided := provider.GetLogger(module); provided != nil {
			logger = provided
		}
	}

	return WithFields(logger, map[string]any{"module": module})
}

// SyncLogger returns the logger used by the reconciliation engine.
func SyncLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, syncModule)
}

// ConverterLogger returns the logger used while rendering block trees.
func ConverterLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, converterModule)
}

// AssetsLogger returns the logger used by the asset resolver and fetcher.
func AssetsLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, assetsModule)
}

// SourceLogger returns the logger used by remote document source clients.
func SourceLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, sourceModule)
}

// StoreLogger returns the logger used by relational store adapters.
func StoreLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, storeModule)
}

// ExportLogger returns the logger used by the markdown file exporter.
func ExportLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, exportModule)
}

// WithDocumentContext attaches the document identity and the current sync
// action to the logger. Empty values are skipped.
func WithDocumentContext(logger interfaces.Logger, documentID, slug, action string) interfaces.Logger {
	fields := map[string]any{}
	if trimmed := strings.TrimSpace(documentID); trimmed != "" {
		fields[fieldDocumentID] = trimmed
	}
	if trimmed := strings.TrimSpace(slug); trimmed != "" {
		fields[fieldDocumentSlug] = trimmed
	}
	if trimmed := strings.TrimSpace(action); trimmed != "" {
		fields[fieldSyncAction] = trimmed
	}
	return WithFields(logger, fields)
}

// NoOp returns a logger that drops every entry.
func NoOp() interfaces.Logger {
	return noopLogger{}
}

type noopLogger struct{}

var _ interfaces.Logger = noopLogger{}

func (noopLogger) Trace(string, ...any) {}
func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
func (noopLogger) Fatal(string, ...any) {}

func (n noopLogger) WithFields(map[string]any) interfaces.Logger {
	return n
}

func (n noopLogger) WithContext(context.Context) interfaces.Logger {
	return n
}
