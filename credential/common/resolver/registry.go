package resolver

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/bluele/gcache"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/veritrail/go-attestation-sdk/credential/common/crypto"
	"github.com/veritrail/go-attestation-sdk/credential/common/model"
	"github.com/veritrail/go-attestation-sdk/credential/common/schema"
)

// AliasCollision records an alias that two verification methods competed
// for. The first registration keeps the alias; the collision is retained for
// diagnostics instead of failing or silently reassigning.
type AliasCollision struct {
	Controller string
	Role       model.Role
	Alias      string
	Kept       string
	Rejected   string
}

// KeyResolver resolves verification keys of one controller for one role.
// Every method is reachable under three aliases: its full id, its bare
// fragment and the thumbprint kid of its JWK.
type KeyResolver struct {
	controller string
	role       model.Role
	keys       map[string]*crypto.PublicKey
	owners     map[string]string
	collisions []AliasCollision
}

// Resolve returns the key an alias points at.
func (r *KeyResolver) Resolve(kid string) (*crypto.PublicKey, error) {
	if key, ok := r.keys[kid]; ok {
		return key, nil
	}

	return nil, &KeyNotFoundError{Controller: r.controller, KeyID: kid, Role: r.role}
}

// Aliases returns every registered alias, sorted.
func (r *KeyResolver) Aliases() []string {
	aliases := maps.Keys(r.keys)
	slices.Sort(aliases)

	return aliases
}

// Collisions returns the alias collisions recorded while the resolver was
// built.
func (r *KeyResolver) Collisions() []AliasCollision {
	return slices.Clone(r.collisions)
}

func (r *KeyResolver) add(alias, vmID string, key *crypto.PublicKey) {
	if owner, taken := r.owners[alias]; taken {
		if owner != vmID {
			r.collisions = append(r.collisions, AliasCollision{
				Controller: r.controller,
				Role:       r.role,
				Alias:      alias,
				Kept:       owner,
				Rejected:   vmID,
			})
		}
		return
	}

	r.keys[alias] = key
	r.owners[alias] = vmID
}

// Entry is a registered controller: its document plus per-role key
// resolvers. Entries are immutable once built, so they may be read without
// holding the registry lock.
type Entry struct {
	doc       model.ControllerDocument
	assertion *KeyResolver
	authn     *KeyResolver
	known     map[string]string
}

// Document returns the registered controller document.
func (e *Entry) Document() model.ControllerDocument {
	return e.doc
}

// Keys returns the key resolver for a role.
func (e *Entry) Keys(role model.Role) *KeyResolver {
	switch role {
	case model.RoleAssertion:
		return e.assertion
	case model.RoleAuthentication:
		return e.authn
	default:
		return &KeyResolver{controller: e.doc.ID, role: role}
	}
}

// HasKey reports whether an alias names any verification method of the
// controller, regardless of role. Used to distinguish an unknown key from a
// known key used outside its authorized role.
func (e *Entry) HasKey(kid string) bool {
	_, ok := e.known[kid]
	return ok
}

// Registry is the in-memory resolver: controller documents, their
// verification keys partitioned by role, and credential schemas compiled on
// first use. It is safe for concurrent use; reads proceed in parallel while
// registration holds the write lock.
type Registry struct {
	mu          sync.RWMutex
	controllers map[string]*Entry
	schemas     map[string][]byte

	cache gcache.Cache
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	r := &Registry{
		controllers: make(map[string]*Entry),
		schemas:     make(map[string][]byte),
	}

	r.cache = gcache.New(0).
		LoaderFunc(func(key interface{}) (interface{}, error) {
			return r.compileSchema(key.(string))
		}).
		Build()

	return r
}

// AddController validates and registers a controller document. Each
// verification method key is imported and validated; the method becomes
// resolvable under its id, bare fragment and thumbprint for every role that
// lists it. Registering an id again replaces the previous document.
func (r *Registry) AddController(doc model.ControllerDocument) error {
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("invalid controller document: %w", err)
	}

	entry, err := buildEntry(doc)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.controllers[doc.ID] = entry
	r.mu.Unlock()

	return nil
}

// RemoveController drops a registered controller document. Keys of a
// removed controller no longer resolve.
func (r *Registry) RemoveController(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.controllers[id]; !ok {
		return &ControllerNotFoundError{ID: id}
	}
	delete(r.controllers, id)

	return nil
}

// Controller resolves a registered controller document.
func (r *Registry) Controller(id string) (*Entry, error) {
	r.mu.RLock()
	entry, ok := r.controllers[id]
	r.mu.RUnlock()

	if !ok {
		return nil, &ControllerNotFoundError{ID: id}
	}

	return entry, nil
}

// ResolveKey resolves a key id under a controller for a role.
func (r *Registry) ResolveKey(controllerID, kid string, role model.Role) (*crypto.PublicKey, error) {
	entry, err := r.Controller(controllerID)
	if err != nil {
		return nil, err
	}

	return entry.Keys(role).Resolve(kid)
}

// AddSchema registers a raw JSON Schema document under an id. Compilation
// happens on first resolution and is cached; re-registering an id drops the
// cached compilation.
func (r *Registry) AddSchema(id string, raw []byte) error {
	if id == "" {
		return fmt.Errorf("schema id is required")
	}
	if !json.Valid(raw) {
		return fmt.Errorf("schema %q is not valid JSON", id)
	}

	r.mu.Lock()
	r.schemas[id] = raw
	r.mu.Unlock()

	r.cache.Remove(id)

	return nil
}

// Schema resolves a registered schema, compiling it on first use.
func (r *Registry) Schema(id string) (*schema.CompiledSchema, error) {
	compiled, err := r.cache.Get(id)
	if err != nil {
		return nil, err
	}

	return compiled.(*schema.CompiledSchema), nil
}

func (r *Registry) compileSchema(id string) (*schema.CompiledSchema, error) {
	r.mu.RLock()
	raw, ok := r.schemas[id]
	r.mu.RUnlock()

	if !ok {
		return nil, &SchemaNotFoundError{ID: id}
	}

	return schema.Compile(id, raw)
}

func buildEntry(doc model.ControllerDocument) (*Entry, error) {
	entry := &Entry{
		doc:       doc,
		assertion: newKeyResolver(doc.ID, model.RoleAssertion),
		authn:     newKeyResolver(doc.ID, model.RoleAuthentication),
		known:     make(map[string]string),
	}

	for i := range doc.VerificationMethod {
		vm := &doc.VerificationMethod[i]

		key, err := crypto.ParsePublicJWK(*vm.PublicKeyJwk)
		if err != nil {
			return nil, fmt.Errorf("verification method %q: %w", vm.ID, err)
		}

		vmID := model.ExpandReference(doc.ID, vm.ID)
		for _, alias := range methodAliases(vmID, key) {
			if _, taken := entry.known[alias]; !taken {
				entry.known[alias] = vmID
			}
		}

		for _, role := range []model.Role{model.RoleAssertion, model.RoleAuthentication} {
			if !roleAuthorizes(doc, role, vmID) {
				continue
			}

			resolver := entry.Keys(role)
			for _, alias := range methodAliases(vmID, key) {
				resolver.add(alias, vmID, key)
			}
		}
	}

	return entry, nil
}

func newKeyResolver(controller string, role model.Role) *KeyResolver {
	return &KeyResolver{
		controller: controller,
		role:       role,
		keys:       make(map[string]*crypto.PublicKey),
		owners:     make(map[string]string),
	}
}

// methodAliases lists the identifiers a verification method resolves under:
// full id, bare fragment and the derived thumbprint of its key.
func methodAliases(vmID string, key *crypto.PublicKey) []string {
	aliases := []string{vmID, model.BareFragment(vmID)}

	if tp := key.Kid(); tp != model.BareFragment(vmID) {
		aliases = append(aliases, tp)
	}

	return aliases
}

func roleAuthorizes(doc model.ControllerDocument, role model.Role, vmID string) bool {
	for _, ref := range doc.RoleReferences(role) {
		if model.ExpandReference(doc.ID, ref) == vmID {
			return true
		}
	}

	return false
}
