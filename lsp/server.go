// Package lsp serves aspcheck diagnostics to editors over the Language
// Server Protocol.
package lsp

import (
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/gophersatwork/aspcheck"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"
)

const serverName = "aspcheck-lsp"

// Server checks open documents on every change and publishes the
// resulting diagnostics.
type Server struct {
	checker *aspcheck.Checker
	docs    *DocumentStore
	logger  *slog.Logger
	handler protocol.Handler
}

func NewServer(checker *aspcheck.Checker, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		checker: checker,
		docs:    NewDocumentStore(),
		logger:  logger,
	}
	s.handler = protocol.Handler{
		Initialize:            s.initialize,
		Initialized:           s.initialized,
		Shutdown:              s.shutdown,
		SetTrace:              s.setTrace,
		TextDocumentDidOpen:   s.didOpen,
		TextDocumentDidChange: s.didChange,
		TextDocumentDidSave:   s.didSave,
		TextDocumentDidClose:  s.didClose,
	}
	return s
}

// Handler returns the protocol handler, for use with any glsp transport.
func (s *Server) Handler() *protocol.Handler {
	return &s.handler
}

// Documents exposes the open buffers.
func (s *Server) Documents() *DocumentStore {
	return s.docs
}

// RunStdio serves a single client on standard input and output.
func (s *Server) RunStdio() error {
	s.logger.Info("Starting LSP server", "transport", "stdio")
	return glspserver.NewServer(&s.handler, serverName, false).RunStdio()
}

// RunTCP serves clients connecting to address.
func (s *Server) RunTCP(address string) error {
	s.logger.Info("Starting LSP server", "transport", "tcp", "address", address)
	return glspserver.NewServer(&s.handler, serverName, false).RunTCP(address)
}

func (s *Server) initialize(_ *glsp.Context, params *protocol.InitializeParams) (any, error) {
	if params.ClientInfo != nil {
		s.logger.Info("Client connected", "name", params.ClientInfo.Name)
	}

	openClose := true
	includeText := true
	change := protocol.TextDocumentSyncKindIncremental
	version := aspcheck.Version
	return protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: protocol.TextDocumentSyncOptions{
				OpenClose: &openClose,
				Change:    &change,
				Save:      &protocol.SaveOptions{IncludeText: &includeText},
			},
		},
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    serverName,
			Version: &version,
		},
	}, nil
}

func (s *Server) initialized(_ *glsp.Context, _ *protocol.InitializedParams) error {
	return nil
}

func (s *Server) shutdown(_ *glsp.Context) error {
	protocol.SetTraceValue(protocol.TraceValueOff)
	s.logger.Info("Shutting down LSP server", "open_documents", s.docs.Len())
	return nil
}

func (s *Server) setTrace(_ *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

func (s *Server) didOpen(context *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	item := params.TextDocument
	s.logger.Debug("Document opened", "uri", item.URI, "version", item.Version)
	s.docs.Set(Document{URI: item.URI, LanguageID: item.LanguageID, Version: item.Version, Text: item.Text})
	s.check(context, item.URI, item.Text)
	return nil
}

func (s *Server) didChange(context *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI
	doc, err := s.docs.Update(uri, params.TextDocument.Version, params.ContentChanges)
	if err != nil {
		s.logger.Warn("Failed to apply document change", "uri", uri, "error", err)
		return err
	}
	s.check(context, uri, doc.Text)
	return nil
}

func (s *Server) didSave(context *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	uri := params.TextDocument.URI
	doc, ok := s.docs.Get(uri)
	if params.Text != nil {
		doc.URI, doc.Text = uri, *params.Text
		s.docs.Set(doc)
	} else if !ok {
		return nil
	}
	s.check(context, uri, doc.Text)
	return nil
}

func (s *Server) didClose(context *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI
	s.logger.Debug("Document closed", "uri", uri)
	s.docs.Delete(uri)
	PublishDiagnostics(context, uri, nil)
	return nil
}

// check parses text as the file behind uri and publishes the outcome.
func (s *Server) check(context *glsp.Context, uri protocol.DocumentUri, text string) {
	path := URIToPath(uri)
	unit, err := aspcheck.NewSource(path, aspcheck.KindForPath(path), []byte(text))
	var result aspcheck.ParseResult
	if err != nil {
		result = aspcheck.LoadFailure(err)
	} else {
		result = s.checker.Parse(unit)
	}
	s.logger.Debug("Checked document", "uri", uri, "status", result.Status.String())
	PublishDiagnostics(context, uri, ToDiagnostics(result, text))
}

// URIToPath converts a file URI to a local path. Other URIs are returned
// unchanged so the extension still selects the unit kind.
func URIToPath(uri protocol.DocumentUri) string {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "file" {
		return uri
	}
	path := u.Path
	// file:///C:/site/default.asp
	if len(path) >= 3 && path[0] == '/' && path[2] == ':' {
		path = path[1:]
	}
	return filepath.FromSlash(strings.TrimSpace(path))
}
