package metaserver

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/nlyu1/agora/internal/agoraerr"
	"github.com/nlyu1/agora/internal/connhandle"
	"github.com/nlyu1/agora/internal/pathtree"
	"github.com/nlyu1/agora/internal/ping"
)

const stateComponent = "metaserver::ServerState"

// Pinger is the subset of a ping client the state needs for liveness
// checks; satisfied by *ping.Client, mocked in tests.
type Pinger interface {
	Ping(ctx context.Context) (ping.Response, error)
	Close() error
}

// PingDialer constructs a Pinger against a publisher's gateway. The
// production implementation opens a real WebSocket ping client;
// tests substitute a fake.
type PingDialer func(path string, conn connhandle.ConnectionHandle) (Pinger, error)

// State is the metaserver's authoritative aggregate: the path tree,
// the registered publishers and the subset of those confirmed to be
// reachable. A single reader-writer lock serialises all mutation;
// readers never block each other.
type State struct {
	mu sync.RWMutex

	tree                 *pathtree.Node
	publishers           map[string]PublisherInfo
	confirmedPublishers  map[string]Pinger
	dialPing             PingDialer

	log *logrus.Entry
}

func NewState(dial PingDialer, log *logrus.Entry) *State {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &State{
		tree:                pathtree.New("agora"),
		publishers:          make(map[string]PublisherInfo),
		confirmedPublishers: make(map[string]Pinger),
		dialPing:            dial,
		log:                 log,
	}
}

// PathTreeRepr renders the current tree under a read lock.
func (s *State) PathTreeRepr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.ToRepr()
}

// ConfirmedPublisherCount reports how many publishers are currently
// enrolled in the liveness sweep, for the admin server's /ready check.
func (s *State) ConfirmedPublisherCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.confirmedPublishers)
}

// validatePathFormat enforces the strict path grammar: non-empty,
// no leading/trailing slash, no doubled slash, no empty or
// whitespace-padded segment.
func validatePathFormat(path string) error {
	if path == "" {
		return agoraerr.Validation(stateComponent, "validatePathFormat", "path cannot be empty")
	}
	if strings.HasPrefix(path, "/") {
		return agoraerr.Validation(stateComponent, "validatePathFormat", "path %q cannot start with '/' - use relative paths only", path)
	}
	if strings.HasSuffix(path, "/") {
		return agoraerr.Validation(stateComponent, "validatePathFormat", "path %q cannot end with '/' - trailing slashes not allowed", path)
	}
	if strings.Contains(path, "//") {
		return agoraerr.Validation(stateComponent, "validatePathFormat", "path %q contains double slashes '//' - not allowed", path)
	}
	if strings.Contains(path, "..") {
		return agoraerr.Validation(stateComponent, "validatePathFormat", "path %q contains '..' - not allowed", path)
	}
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if seg == "" {
			return agoraerr.Validation(stateComponent, "validatePathFormat", "path %q has empty segment at position %d - not allowed", path, i)
		}
		if strings.TrimSpace(seg) != seg {
			return agoraerr.Validation(stateComponent, "validatePathFormat", "path segment %q has leading/trailing whitespace - not allowed", seg)
		}
	}
	return nil
}

// validateParentPathsAreDirectories rejects path if any proper
// ancestor is itself a registered publisher.
func (s *State) validateParentPathsAreDirectories(path string) error {
	parts := strings.Split(path, "/")
	var current string
	for i, part := range parts {
		if i == len(parts)-1 {
			break
		}
		if current == "" {
			current = part
		} else {
			current = current + "/" + part
		}
		if info, ok := s.publishers[current]; ok {
			return agoraerr.Conflict(stateComponent, "RegisterPublisher", "path parent should all be directories, but %q is associated with a publisher %+v. Consider removing first.", current, info)
		}
	}
	return nil
}

// ensurePathExists lazily creates the TreeNode chain for path.
func (s *State) ensurePathExists(path string) error {
	parts := strings.Split(path, "/")
	var current string
	for _, part := range parts {
		if current == "" {
			current = part
		} else {
			current = current + "/" + part
		}
		if _, err := s.tree.GetChild(current); err != nil {
			parentPath := ""
			if idx := strings.LastIndex(current, "/"); idx >= 0 {
				parentPath = current[:idx]
			}
			parentNode := s.tree
			if parentPath != "" {
				parentNode, err = s.tree.GetChild(parentPath)
				if err != nil {
					return err
				}
			}
			parentNode.AddChild(pathtree.New(part))
		}
	}
	return nil
}

// RegisterPublisher validates path, checks structural conflicts, lazily
// creates the tree branch and inserts a registered-but-unconfirmed
// PublisherInfo.
func (s *State) RegisterPublisher(name, path string, hostConn connhandle.ConnectionHandle) (PublisherInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validatePathFormat(path); err != nil {
		return PublisherInfo{}, err
	}

	if existing, ok := s.publishers[path]; ok {
		return PublisherInfo{}, agoraerr.Conflict(stateComponent, "RegisterPublisher",
			"publisher %+v already registered at %s. Check path or remove it first.", existing, path)
	}

	if err := s.validateParentPathsAreDirectories(path); err != nil {
		return PublisherInfo{}, err
	}

	if _, err := s.tree.GetChild(path); err == nil {
		return PublisherInfo{}, agoraerr.Conflict(stateComponent, "RegisterPublisher",
			"path %q already exists as a directory in the tree. Publishers can only be registered at new paths.", path)
	}

	if err := s.ensurePathExists(path); err != nil {
		return PublisherInfo{}, err
	}

	info := PublisherInfo{Name: name, HostConnection: hostConn, AgoraPath: path}
	s.publishers[path] = info
	s.log.Infof("registered publisher %+v at path %s", info, path)
	return info, nil
}

// ConfirmPublisher validates reachability of a registered publisher via
// one synchronous ping and, on success, enrols it into the liveness
// sweep. A failed ping rolls back the registration entirely.
func (s *State) ConfirmPublisher(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validatePathFormat(path); err != nil {
		return err
	}

	info, ok := s.publishers[path]
	if !ok {
		return agoraerr.NotFound(stateComponent, "ConfirmPublisher", "please register path %s before confirming", path)
	}
	if _, ok := s.confirmedPublishers[path]; ok {
		return agoraerr.Conflict(stateComponent, "ConfirmPublisher", "%s already registered and confirmed", path)
	}

	client, err := s.dialPing(path, info.HostConnection)
	if err != nil {
		s.removePublisherLocked(path)
		s.log.Warnf("removed registered publisher %s upon unsuccessful confirmation", path)
		return agoraerr.Transport(stateComponent, "ConfirmPublisher", fmt.Errorf("failed to create ping client, are you running the gateway?: %w", err))
	}
	if _, err := client.Ping(ctx); err != nil {
		client.Close()
		s.removePublisherLocked(path)
		s.log.Warnf("removed registered publisher %s upon unsuccessful confirmation", path)
		return agoraerr.Transport(stateComponent, "ConfirmPublisher", err)
	}

	s.confirmedPublishers[path] = client
	s.log.Infof("publisher %s confirmed", path)
	return nil
}

// RemovePublisher removes a registered publisher and prunes its branch
// of the tree. Succeeds iff an entry existed in publishers.
func (s *State) RemovePublisher(path string) (PublisherInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validatePathFormat(path); err != nil {
		return PublisherInfo{}, err
	}
	return s.removePublisherLocked(path)
}

func (s *State) removePublisherLocked(path string) (PublisherInfo, error) {
	info, ok := s.publishers[path]
	if !ok {
		return PublisherInfo{}, agoraerr.NotFound(stateComponent, "RemovePublisher",
			"can only remove paths associated with publishers: path %q is not associated with any publishers.", path)
	}
	delete(s.publishers, path)
	if err := s.tree.RemoveChildAndBranch(path); err != nil {
		s.log.Errorf("failed to prune tree branch for %s: %v", path, err)
	}
	if client, ok := s.confirmedPublishers[path]; ok {
		client.Close()
		delete(s.confirmedPublishers, path)
	}
	return info, nil
}

// GetPublisherInfo validates path and, if confirmed, issues a
// synchronous ping before returning the cached info. A failed ping
// surfaces StaleError without implicitly removing the publisher. The
// ping itself runs outside the lock so a slow or hanging publisher
// never serialises other RPCs behind it; only the map reads are
// guarded, under a read lock so concurrent GetPublisherInfo/PathTree
// calls never block each other.
func (s *State) GetPublisherInfo(ctx context.Context, path string) (PublisherInfo, error) {
	if err := validatePathFormat(path); err != nil {
		return PublisherInfo{}, err
	}

	s.mu.RLock()
	info, registered := s.publishers[path]
	client, confirmed := s.confirmedPublishers[path]
	s.mu.RUnlock()

	switch {
	case registered && confirmed:
		if _, err := client.Ping(ctx); err != nil {
			return PublisherInfo{}, agoraerr.Stale(stateComponent, "GetPublisherInfo", "cannot ping %s. Publisher might be stale", path)
		}
		return info, nil
	case registered:
		return PublisherInfo{}, agoraerr.NotFound(stateComponent, "GetPublisherInfo", "publisher at %s is registered but not confirmed", path)
	default:
		return PublisherInfo{}, agoraerr.NotFound(stateComponent, "GetPublisherInfo", "publisher not registered at %s", path)
	}
}

// PruneStalePublishers pings every confirmed publisher once and
// removes those that fail to respond, returning the pruned paths.
// Individual ping failures never abort the sweep.
func (s *State) PruneStalePublishers(ctx context.Context) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths := make([]string, 0, len(s.confirmedPublishers))
	for p := range s.confirmedPublishers {
		paths = append(paths, p)
	}

	var stale []string
	for _, p := range paths {
		client, ok := s.confirmedPublishers[p]
		if !ok {
			continue
		}
		if _, err := client.Ping(ctx); err != nil {
			stale = append(stale, p)
		}
	}

	for _, p := range stale {
		if _, err := s.removePublisherLocked(p); err != nil {
			s.log.Errorf("failed to remove stale publisher at %s: %v", p, err)
		}
	}
	return stale
}
