package claim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
)

// DefaultZKRoot is the parent znode for claims.
const DefaultZKRoot = "/idforge/claims"

// ZKConn is the subset of *zk.Conn used by ZK.
type ZKConn interface {
	Exists(path string) (bool, *zk.Stat, error)
	Create(path string, data []byte, flags int32, acl []zk.ACL) (string, error)
	Delete(path string, version int32) error
	Close()
}

// ZK claims identifiers by creating one persistent znode per identifier
// under a root path. ZooKeeper's create is atomic, so two processes racing
// on the same candidate see exactly one success.
type ZK struct {
	conn ZKConn
	root string
	opts options
}

// DialZK connects to a ZooKeeper ensemble and prepares root.
func DialZK(servers []string, root string, timeout time.Duration, opts ...Option) (*ZK, error) {
	o := buildOptions(opts)
	c, _, err := zk.Connect(servers, timeout, zk.WithLogger(zkLogger{o.logger}))
	if err != nil {
		return nil, fmt.Errorf("connect zk failed: %w", err)
	}
	z, err := NewZK(c, root, opts...)
	if err != nil {
		c.Close()
		return nil, err
	}
	return z, nil
}

// NewZK wraps an existing connection and creates root if needed.
func NewZK(conn ZKConn, root string, opts ...Option) (*ZK, error) {
	if root == "" {
		root = DefaultZKRoot
	}
	if !strings.HasPrefix(root, "/") || (len(root) > 1 && strings.HasSuffix(root, "/")) {
		return nil, fmt.Errorf("claim: zk root %q must be an absolute path", root)
	}
	z := &ZK{conn: conn, root: root, opts: buildOptions(opts)}
	if err := z.ensurePath(root); err != nil {
		return nil, err
	}
	return z, nil
}

// ensurePath creates every missing node along path.
func (z *ZK) ensurePath(path string) error {
	var current string
	for _, part := range strings.Split(strings.Trim(path, "/"), "/") {
		if part == "" {
			continue
		}
		current += "/" + part
		exists, _, err := z.conn.Exists(current)
		if err != nil {
			return fmt.Errorf("check node existence failed: %w", err)
		}
		if exists {
			continue
		}
		// Create the path with open permissions if it doesn't exist yet.
		_, err = z.conn.Create(current, []byte{}, 0, zk.WorldACL(zk.PermAll))
		if err != nil && !errors.Is(err, zk.ErrNodeExists) {
			return fmt.Errorf("create %s: %w", current, err)
		}
	}
	return nil
}

// node returns the znode path for candidate. The candidate is path-escaped
// so it is always a single node name.
func (z *ZK) node(candidate string) string {
	return z.root + "/id-" + url.PathEscape(candidate)
}

// Accept creates the candidate's znode; an existing node means it is taken.
func (z *ZK) Accept(ctx context.Context, candidate string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if candidate == "" {
		return false, ErrEmptyCandidate
	}
	data := []byte(strconv.FormatInt(z.opts.now().UnixMilli(), 10))
	_, err := z.conn.Create(z.node(candidate), data, 0, zk.WorldACL(zk.PermAll))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, zk.ErrNodeExists):
		return false, nil
	default:
		return false, fmt.Errorf("create claim node: %w", err)
	}
}

// Claimed reports whether candidate's znode exists.
func (z *ZK) Claimed(candidate string) (bool, error) {
	exists, _, err := z.conn.Exists(z.node(candidate))
	return exists, err
}

// Release deletes candidate's znode. Releasing an unclaimed candidate is not an error.
func (z *ZK) Release(candidate string) error {
	err := z.conn.Delete(z.node(candidate), -1)
	if err != nil && !errors.Is(err, zk.ErrNoNode) {
		return fmt.Errorf("delete claim node: %w", err)
	}
	return nil
}

// Close closes the connection.
func (z *ZK) Close() error {
	z.conn.Close()
	return nil
}

// zkLogger routes the client's internal logging into slog.
type zkLogger struct {
	l *slog.Logger
}

func (z zkLogger) Printf(format string, args ...any) {
	z.l.Debug(fmt.Sprintf(format, args...), "component", "zk")
}
