package lsp

import "go.lsp.dev/protocol"

// Provider is the semantic engine boundary. The core guarantees the needed
// files are fetched and materialized before any of these is called; computing
// the answers is outside lodestar's scope.
type Provider interface {
	Hover(path string, pos protocol.Position) (*protocol.Hover, error)
	Definition(path string, pos protocol.Position) ([]protocol.Location, error)
	References(path string, pos protocol.Position) ([]protocol.Location, error)
	WorkspaceSymbols(query string) ([]protocol.SymbolInformation, error)
}

// nopProvider answers every request with an empty result. It stands in until
// a real engine is plugged via SetProvider.
type nopProvider struct{}

func (nopProvider) Hover(string, protocol.Position) (*protocol.Hover, error) {
	return nil, nil
}

func (nopProvider) Definition(string, protocol.Position) ([]protocol.Location, error) {
	return nil, nil
}

func (nopProvider) References(string, protocol.Position) ([]protocol.Location, error) {
	return nil, nil
}

func (nopProvider) WorkspaceSymbols(string) ([]protocol.SymbolInformation, error) {
	return nil, nil
}
