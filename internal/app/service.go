package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"loom/internal/auth"
	"loom/internal/config"
	"loom/internal/export"
	"loom/internal/search"
	"loom/internal/store"
	"loom/internal/tree"
	"loom/internal/util"
)

type Session struct {
	Token     string
	SID       string
	ExpiresAt time.Time
}

// ReturnMode selects how much of the conversation a mutation response
// carries back to the client.
type ReturnMode string

const (
	ReturnFull   ReturnMode = "full"
	ReturnNode   ReturnMode = "node"
	ReturnStatus ReturnMode = "status"
)

// ParseReturnMode resolves the ?return= query value; empty means full.
func ParseReturnMode(raw string) (ReturnMode, error) {
	switch mode := ReturnMode(strings.TrimSpace(raw)); mode {
	case "":
		return ReturnFull, nil
	case ReturnFull, ReturnNode, ReturnStatus:
		return mode, nil
	default:
		return "", domainError(http.StatusUnprocessableEntity, "INVALID_OPERATION", fmt.Sprintf("unknown return mode %q", raw), nil)
	}
}

type CreateConversationInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Greeting    string `json:"greeting"`
}

type UpdateConversationInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type AddRootInput struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type AppendInput struct {
	ParentID string `json:"parent_id"`
	Role     string `json:"role"`
	Content  string `json:"content"`
}

type RetryInput struct {
	TargetID string `json:"target_id"`
	NewID    string `json:"new_id"`
	Role     string `json:"role"`
	Content  string `json:"content"`
}

type RetryUserInput struct {
	UserID string `json:"user_id"`
}

type NodeInput struct {
	NodeID string `json:"node_id"`
}

type SwitchBranchInput struct {
	Branch int `json:"branch"`
}

type UpdateContentInput struct {
	Content string `json:"content"`
}

// documentStore is the slice of the persistence contract the service
// consumes; any store backend satisfies it.
type documentStore interface {
	Load(ctx context.Context, id string) (*tree.Document, error)
	Save(ctx context.Context, id string, doc *tree.Document) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]store.Entry, error)
}

type searchService interface {
	Search(ctx context.Context, q search.Query) search.Response
	IndexConversation(id string, doc *tree.Document, removedIDs []string)
	DeleteConversation(id string, nodeIDs []string)
}

type exportService interface {
	Export(ctx context.Context, id, name string, doc *tree.Document, format export.Format) (*export.Result, error)
}

type Service struct {
	cfg    config.Config
	store  documentStore
	search searchService
	export exportService

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(cfg config.Config, documents store.DocumentStore, searchSvc *search.Service, exportSvc *export.Service) *Service {
	return &Service{
		cfg:    cfg,
		store:  documents,
		search: searchSvc,
		export: exportSvc,
		locks:  make(map[string]*sync.Mutex),
	}
}

// lockFor returns the per-conversation mutex, created on first use.
// Mutations serialize per conversation; reads go straight to the store,
// whose whole-document saves they can never observe half-applied.
func (s *Service) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

// AuthRequired reports whether the password gate is configured.
func (s *Service) AuthRequired() bool {
	return s.cfg.PasswordHash != ""
}

func (s *Service) Login(password string) (Session, error) {
	if err := auth.CheckPassword(s.cfg.PasswordHash, password); err != nil {
		return Session{}, unauthorizedError("Wrong password")
	}
	expiresAt := time.Now().Add(s.cfg.SessionTTL)
	sid := util.NewID("ses")

	token, err := auth.IssueToken([]byte(s.cfg.TokenSecret), auth.Claims{
		SID: sid,
		Exp: expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, SID: sid, ExpiresAt: expiresAt}, nil
}

func (s *Service) SessionFromToken(token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.TokenSecret), token)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, SID: claims.SID, ExpiresAt: time.Unix(claims.Exp, 0)}, nil
}

// Ping checks the store for the readiness probe.
func (s *Service) Ping(ctx context.Context) error {
	_, err := s.store.List(ctx)
	return err
}

func (s *Service) CreateConversation(ctx context.Context, input CreateConversationInput) (map[string]any, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = "New conversation"
	}
	id := util.NewID("conv")
	doc := tree.New(name, strings.TrimSpace(input.Description))
	if strings.TrimSpace(input.Greeting) != "" {
		if _, err := doc.AddRoot(tree.RoleAssistant, input.Greeting); err != nil {
			return nil, err
		}
	}
	if err := s.store.Save(ctx, id, doc); err != nil {
		return nil, err
	}
	s.search.IndexConversation(id, doc, nil)
	return conversationPayload(id, doc), nil
}

func (s *Service) ListConversations(ctx context.Context) ([]store.Entry, error) {
	return s.store.List(ctx)
}

func (s *Service) GetConversation(ctx context.Context, id string) (map[string]any, error) {
	doc, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(doc.Roots) > 0 {
		if _, err := doc.Normalize(); err != nil {
			return nil, err
		}
	}
	payload := conversationPayload(id, doc)
	payload["document"] = doc
	return payload, nil
}

func (s *Service) UpdateConversationMeta(ctx context.Context, id string, input UpdateConversationInput) (map[string]any, error) {
	if input.Name == nil && input.Description == nil {
		return nil, validationError("nothing to update")
	}
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	doc, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		doc.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		doc.Description = strings.TrimSpace(*input.Description)
	}
	doc.UpdatedAt = time.Now().UTC()
	if err := s.store.Save(ctx, id, doc); err != nil {
		return nil, err
	}
	s.search.IndexConversation(id, doc, nil)
	return conversationPayload(id, doc), nil
}

func (s *Service) DeleteConversation(ctx context.Context, id string) error {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	doc, err := s.store.Load(ctx, id)
	if err != nil {
		return err
	}
	nodeIDs := make([]string, 0, len(doc.Nodes))
	for nodeID := range doc.Nodes {
		nodeIDs = append(nodeIDs, nodeID)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.search.DeleteConversation(id, nodeIDs)
	return nil
}

// mutation is one engine operation's outcome: the focal node if the
// operation has one, op-specific payload keys, and whether the document
// changed and must be persisted.
type mutation struct {
	node    *tree.Node
	extra   map[string]any
	changed bool
}

func (s *Service) mutate(ctx context.Context, id string, mode ReturnMode, op func(doc *tree.Document) (mutation, error)) (map[string]any, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	doc, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	before := nodeIDSet(doc)

	result, err := op(doc)
	if err != nil {
		return nil, err
	}
	if result.changed {
		// Re-anchor a path the mutation may have emptied, so the
		// stored document always matches what we hand back.
		if len(doc.Roots) > 0 {
			if _, err := doc.Normalize(); err != nil {
				return nil, err
			}
		}
		if err := s.store.Save(ctx, id, doc); err != nil {
			return nil, err
		}
		s.search.IndexConversation(id, doc, removedSince(before, doc))
	}
	return renderMutation(id, doc, mode, result), nil
}

func (s *Service) AddRoot(ctx context.Context, id string, mode ReturnMode, input AddRootInput) (map[string]any, error) {
	return s.mutate(ctx, id, mode, func(doc *tree.Document) (mutation, error) {
		node, err := doc.AddRoot(tree.Role(input.Role), input.Content)
		if err != nil {
			return mutation{}, err
		}
		return mutation{node: node, changed: true}, nil
	})
}

func (s *Service) Append(ctx context.Context, id string, mode ReturnMode, input AppendInput) (map[string]any, error) {
	return s.mutate(ctx, id, mode, func(doc *tree.Document) (mutation, error) {
		node, placeholder, err := doc.Append(input.ParentID, tree.Role(input.Role), input.Content)
		if err != nil {
			return mutation{}, err
		}
		return mutation{
			node:    node,
			changed: true,
			extra:   map[string]any{"placeholder": placeholder},
		}, nil
	})
}

func (s *Service) Retry(ctx context.Context, id string, mode ReturnMode, input RetryInput) (map[string]any, error) {
	newID := strings.TrimSpace(input.NewID)
	if newID == "" {
		newID = util.NewID("msg")
	}
	return s.mutate(ctx, id, mode, func(doc *tree.Document) (mutation, error) {
		node, err := doc.Retry(newID, input.TargetID, tree.Role(input.Role), input.Content)
		if err != nil {
			return mutation{}, err
		}
		return mutation{node: node, changed: true}, nil
	})
}

func (s *Service) RetryUserMessage(ctx context.Context, id string, mode ReturnMode, input RetryUserInput) (map[string]any, error) {
	return s.mutate(ctx, id, mode, func(doc *tree.Document) (mutation, error) {
		node, created, err := doc.RetryUserMessage(input.UserID)
		if err != nil {
			return mutation{}, err
		}
		return mutation{
			node:    node,
			changed: created,
			extra:   map[string]any{"created": created},
		}, nil
	})
}

func (s *Service) TruncateAfter(ctx context.Context, id string, mode ReturnMode, input NodeInput) (map[string]any, error) {
	return s.mutate(ctx, id, mode, func(doc *tree.Document) (mutation, error) {
		if err := doc.TruncateAfter(input.NodeID); err != nil {
			return mutation{}, err
		}
		return mutation{changed: true}, nil
	})
}

func (s *Service) DeleteBranch(ctx context.Context, id string, mode ReturnMode, input NodeInput) (map[string]any, error) {
	return s.mutate(ctx, id, mode, func(doc *tree.Document) (mutation, error) {
		if err := doc.DeleteBranch(input.NodeID); err != nil {
			return mutation{}, err
		}
		return mutation{changed: true}, nil
	})
}

func (s *Service) SwitchBranch(ctx context.Context, id string, mode ReturnMode, input SwitchBranchInput) (map[string]any, error) {
	return s.mutate(ctx, id, mode, func(doc *tree.Document) (mutation, error) {
		node, changed, err := doc.SwitchBranch(input.Branch)
		if err != nil {
			return mutation{}, err
		}
		return mutation{
			node:    node,
			changed: changed,
			extra:   map[string]any{"changed": changed},
		}, nil
	})
}

func (s *Service) UpdateContent(ctx context.Context, id, nodeID string, mode ReturnMode, input UpdateContentInput) (map[string]any, error) {
	return s.mutate(ctx, id, mode, func(doc *tree.Document) (mutation, error) {
		node, err := doc.UpdateContent(nodeID, input.Content)
		if err != nil {
			return mutation{}, err
		}
		return mutation{node: node, changed: true}, nil
	})
}

// Messages returns the linear transcript of the active path. A
// conversation with no roots yet projects to an empty transcript.
func (s *Service) Messages(ctx context.Context, id string) ([]tree.Message, error) {
	doc, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(doc.Roots) == 0 {
		return []tree.Message{}, nil
	}
	return doc.ExportMessages()
}

// Latest reports where the active tip sits among its siblings; nil for
// an empty conversation.
func (s *Service) Latest(ctx context.Context, id string) (*tree.Summary, error) {
	doc, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(doc.Roots) == 0 {
		return nil, nil
	}
	latest, err := doc.LatestSummary()
	if err != nil {
		return nil, err
	}
	return &latest, nil
}

// Branches returns the per-depth branch table for the active path.
func (s *Service) Branches(ctx context.Context, id string) ([]tree.Summary, error) {
	doc, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(doc.Roots) == 0 {
		return []tree.Summary{}, nil
	}
	return doc.BranchTable()
}

func (s *Service) Search(ctx context.Context, q search.Query) search.Response {
	return s.search.Search(ctx, q)
}

func (s *Service) Export(ctx context.Context, id string, format export.Format) (*export.Result, error) {
	if !format.Valid() {
		return nil, validationError(fmt.Sprintf("unsupported format %q", format))
	}
	doc, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(doc.Roots) > 0 {
		if _, err := doc.Normalize(); err != nil {
			return nil, err
		}
	}
	return s.export.Export(ctx, id, doc.Name, doc, format)
}

func conversationPayload(id string, doc *tree.Document) map[string]any {
	return map[string]any{
		"id":          id,
		"name":        doc.Name,
		"description": doc.Description,
		"root_count":  len(doc.Roots),
		"node_count":  len(doc.Nodes),
		"updated_at":  doc.UpdatedAt,
	}
}

func renderMutation(id string, doc *tree.Document, mode ReturnMode, result mutation) map[string]any {
	switch mode {
	case ReturnStatus:
		return map[string]any{"ok": true}
	case ReturnNode:
		payload := map[string]any{"active_path": doc.ActivePath}
		if result.node != nil {
			payload["node"] = result.node
		}
		if latest, err := doc.LatestSummary(); err == nil {
			payload["latest"] = latest
		}
		for key, value := range result.extra {
			payload[key] = value
		}
		return payload
	default:
		payload := conversationPayload(id, doc)
		payload["document"] = doc
		if result.node != nil {
			payload["node"] = result.node
		}
		for key, value := range result.extra {
			payload[key] = value
		}
		return payload
	}
}

func nodeIDSet(doc *tree.Document) map[string]bool {
	ids := make(map[string]bool, len(doc.Nodes))
	for id := range doc.Nodes {
		ids[id] = true
	}
	return ids
}

func removedSince(before map[string]bool, doc *tree.Document) []string {
	var removed []string
	for id := range before {
		if _, ok := doc.Nodes[id]; !ok {
			removed = append(removed, id)
		}
	}
	return removed
}
