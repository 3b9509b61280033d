package routeros

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Device command paths.
const (
	pathIdentity       = "/system/identity/print"
	pathResource       = "/system/resource/print"
	pathHotspotUser    = "/ip/hotspot/user"
	pathHotspotActive  = "/ip/hotspot/active/print"
	pathHotspotProfile = "/ip/hotspot/user/profile/print"
)

// Client exposes the hotspot voucher operations of one NAS device. Every call
// opens a fresh session, runs its commands, and closes it: the device is the
// source of truth and nothing is cached between calls. Clients are cheap and
// safe for concurrent use.
type Client struct {
	cfg    DeviceConfig
	logger *zap.Logger
	dial   dialer // test seam, nil in production
}

// NewClient builds a device client. The config is normalized once here;
// invalid timeouts are clamped rather than rejected.
func NewClient(cfg DeviceConfig, logger *zap.Logger) *Client {
	return &Client{cfg: cfg.normalized(), logger: logger.Named("routeros")}
}

// withSession opens a session, runs fn, and closes the session regardless of
// outcome.
func (c *Client) withSession(ctx context.Context, fn func(*Conn) error) error {
	conn, err := dialWith(ctx, c.cfg, c.logger, c.dial)
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(conn)
}

// TestConnection verifies reachability and credentials and returns the
// device's self-description.
func (c *Client) TestConnection(ctx context.Context) (*SystemInfo, error) {
	start := time.Now()
	var info SystemInfo
	err := c.withSession(ctx, func(conn *Conn) error {
		recs, err := conn.Send(ctx, command(pathIdentity, nil, nil))
		if err != nil {
			return c.classify("identity", err)
		}
		if len(recs) > 0 {
			info.Identity = recs[0].attrs["name"]
		}

		recs, err = conn.Send(ctx, command(pathResource, nil, nil))
		if err != nil {
			return c.classify("resource", err)
		}
		if len(recs) > 0 {
			info.BoardName = recs[0].attrs["board-name"]
			info.OSVersion = recs[0].attrs["version"]
			info.UptimeString = recs[0].attrs["uptime"]
		}
		return nil
	})
	observeDeviceOp("test_connection", start, err)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// ListProfiles returns the hotspot user profiles defined on the device.
func (c *Client) ListProfiles(ctx context.Context) ([]ServiceProfile, error) {
	start := time.Now()
	var profiles []ServiceProfile
	err := c.withSession(ctx, func(conn *Conn) error {
		recs, err := conn.Send(ctx, command(pathHotspotProfile, nil, nil))
		if err != nil {
			return c.classify("list profiles", err)
		}
		profiles = make([]ServiceProfile, 0, len(recs))
		for _, rec := range recs {
			profiles = append(profiles, ServiceProfile{
				Name:      rec.attrs["name"],
				RateLimit: rec.attrs["rate-limit"],
				Parent:    rec.attrs["parent-queue"],
				Comment:   rec.attrs["comment"],
				Default:   rec.attrs["name"] == "default",
			})
		}
		return nil
	})
	observeDeviceOp("list_profiles", start, err)
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

// CreateVoucher adds a hotspot user and reads it back so the caller gets the
// account as the device stored it, not as it was requested. The spec's
// DataLimit string is parsed before any session is opened; a bad limit never
// touches the device.
func (c *Client) CreateVoucher(ctx context.Context, spec VoucherSpec) (*VoucherAccount, error) {
	if spec.Username == "" {
		return nil, fmt.Errorf("create voucher: username is required")
	}
	limitBytes, err := ParseDataLimit(spec.DataLimit)
	if err != nil {
		return nil, err
	}

	attrs := map[string]string{
		"name":     spec.Username,
		"password": spec.Password,
	}
	if spec.Profile != "" {
		attrs["profile"] = spec.Profile
	}
	if spec.TimeLimit != "" {
		attrs["limit-uptime"] = spec.TimeLimit
	}
	if limitBytes > 0 {
		attrs["limit-bytes-total"] = strconv.FormatInt(limitBytes, 10)
	}
	if spec.Comment != "" {
		attrs["comment"] = spec.Comment
	}

	start := time.Now()
	var account *VoucherAccount
	opErr := c.withSession(ctx, func(conn *Conn) error {
		if _, err := conn.Send(ctx, command(pathHotspotUser+"/add", attrs, nil)); err != nil {
			return c.classify("create voucher", err)
		}

		// Read-back: confirm the device stored the user and return its view.
		recs, err := conn.Send(ctx, command(pathHotspotUser+"/print", nil,
			map[string]string{"name": spec.Username}))
		if err != nil {
			return c.classify("create voucher read-back", err)
		}
		if len(recs) == 0 {
			return &ProtocolError{Op: "create voucher read-back",
				Err: fmt.Errorf("user %q accepted but not found on read-back", spec.Username)}
		}
		account = recordToAccount(recs[0])
		account.Password = spec.Password // the device never echoes passwords
		return nil
	})
	observeDeviceOp("create_voucher", start, opErr)
	if opErr != nil {
		return nil, opErr
	}

	fields := []zap.Field{
		zap.String("username", spec.Username),
		zap.String("profile", spec.Profile),
	}
	if limitBytes > 0 {
		fields = append(fields, zap.String("data_limit", FormatBytes(limitBytes)))
	}
	c.logger.Info("voucher created on device", fields...)
	return account, nil
}

// GetUser returns the hotspot user by username, or nil when the device does
// not know it. A miss is a valid answer here, not an error.
func (c *Client) GetUser(ctx context.Context, username string) (*VoucherAccount, error) {
	start := time.Now()
	var account *VoucherAccount
	err := c.withSession(ctx, func(conn *Conn) error {
		recs, err := conn.Send(ctx, command(pathHotspotUser+"/print", nil,
			map[string]string{"name": username}))
		if err != nil {
			return c.classify("get user", err)
		}
		if len(recs) > 0 {
			account = recordToAccount(recs[0])
		}
		return nil
	})
	observeDeviceOp("get_user", start, err)
	if err != nil {
		return nil, err
	}
	return account, nil
}

// UpdateUser sets the given attributes on an existing hotspot user. The
// username resolves to the device's internal .id first; an unknown username
// yields ErrNotFound before any write happens.
func (c *Client) UpdateUser(ctx context.Context, username string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	start := time.Now()
	err := c.withSession(ctx, func(conn *Conn) error {
		recs, err := conn.Send(ctx, command(pathHotspotUser+"/print", nil,
			map[string]string{"name": username}))
		if err != nil {
			return c.classify("update user lookup", err)
		}
		if len(recs) == 0 {
			return fmt.Errorf("user %q: %w", username, ErrNotFound)
		}
		id := recs[0].attrs[".id"]
		if id == "" {
			return &ProtocolError{Op: "update user",
				Err: fmt.Errorf("user %q record missing .id", username)}
		}

		attrs := map[string]string{".id": id}
		for k, v := range fields {
			attrs[k] = v
		}
		if _, err := conn.Send(ctx, command(pathHotspotUser+"/set", attrs, nil)); err != nil {
			return c.classify("update user", err)
		}
		return nil
	})
	observeDeviceOp("update_user", start, err)
	return err
}

// DisableUser marks the hotspot user disabled without deleting it.
func (c *Client) DisableUser(ctx context.Context, username string) error {
	return c.UpdateUser(ctx, username, map[string]string{"disabled": "yes"})
}

// EnableUser re-enables a disabled hotspot user.
func (c *Client) EnableUser(ctx context.Context, username string) error {
	return c.UpdateUser(ctx, username, map[string]string{"disabled": "no"})
}

// DeleteUser removes a hotspot user by username. A username the device does
// not know yields ErrNotFound.
func (c *Client) DeleteUser(ctx context.Context, username string) error {
	start := time.Now()
	err := c.withSession(ctx, func(conn *Conn) error {
		recs, err := conn.Send(ctx, command(pathHotspotUser+"/print", nil,
			map[string]string{"name": username}))
		if err != nil {
			return c.classify("delete user lookup", err)
		}
		if len(recs) == 0 {
			return fmt.Errorf("user %q: %w", username, ErrNotFound)
		}
		id := recs[0].attrs[".id"]
		if id == "" {
			return &ProtocolError{Op: "delete user",
				Err: fmt.Errorf("user %q record missing .id", username)}
		}

		if _, err := conn.Send(ctx, command(pathHotspotUser+"/remove",
			map[string]string{".id": id}, nil)); err != nil {
			return c.classify("delete user", err)
		}
		return nil
	})
	observeDeviceOp("delete_user", start, err)
	if err != nil {
		return err
	}
	c.logger.Info("voucher user removed from device", zap.String("username", username))
	return nil
}

// GetActiveUsers returns the sessions currently logged in to the hotspot.
func (c *Client) GetActiveUsers(ctx context.Context) ([]ActiveSession, error) {
	start := time.Now()
	var sessions []ActiveSession
	err := c.withSession(ctx, func(conn *Conn) error {
		recs, err := conn.Send(ctx, command(pathHotspotActive, nil, nil))
		if err != nil {
			return c.classify("active users", err)
		}
		sessions = make([]ActiveSession, 0, len(recs))
		for _, rec := range recs {
			sessions = append(sessions, ActiveSession{
				Username:   rec.attrs["user"],
				Address:    rec.attrs["address"],
				Uptime:     time.Duration(parseDeviceUptime(rec.attrs["uptime"])) * time.Second,
				BytesIn:    parseInt64(rec.attrs["bytes-in"]),
				BytesOut:   parseInt64(rec.attrs["bytes-out"]),
				PacketsIn:  parseInt64(rec.attrs["packets-in"]),
				PacketsOut: parseInt64(rec.attrs["packets-out"]),
			})
		}
		return nil
	})
	observeDeviceOp("get_active_users", start, err)
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

// GetUsersByProfile returns all hotspot users assigned to the profile. An
// unknown profile returns an empty slice, not an error: the device treats the
// profile as a plain match value on print queries.
func (c *Client) GetUsersByProfile(ctx context.Context, profile string) ([]VoucherAccount, error) {
	start := time.Now()
	var accounts []VoucherAccount
	err := c.withSession(ctx, func(conn *Conn) error {
		recs, err := conn.Send(ctx, command(pathHotspotUser+"/print", nil,
			map[string]string{"profile": profile}))
		if err != nil {
			return c.classify("users by profile", err)
		}
		accounts = make([]VoucherAccount, 0, len(recs))
		for _, rec := range recs {
			accounts = append(accounts, *recordToAccount(rec))
		}
		return nil
	})
	observeDeviceOp("get_users_by_profile", start, err)
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

// GetUserStatistics merges the stored account with its live session, if one
// exists. Missing users yield ErrNotFound.
func (c *Client) GetUserStatistics(ctx context.Context, username string) (*UserStatistics, error) {
	start := time.Now()
	var stats UserStatistics
	err := c.withSession(ctx, func(conn *Conn) error {
		recs, err := conn.Send(ctx, command(pathHotspotUser+"/print", nil,
			map[string]string{"name": username}))
		if err != nil {
			return c.classify("user statistics", err)
		}
		if len(recs) == 0 {
			return fmt.Errorf("user %q: %w", username, ErrNotFound)
		}
		stats.Account = recordToAccount(recs[0])

		active, err := conn.Send(ctx, command(pathHotspotActive, nil,
			map[string]string{"user": username}))
		if err != nil {
			return c.classify("user statistics active", err)
		}
		if len(active) > 0 {
			rec := active[0]
			stats.Active = &ActiveSession{
				Username: rec.attrs["user"],
				Address:  rec.attrs["address"],
				Uptime:   time.Duration(parseDeviceUptime(rec.attrs["uptime"])) * time.Second,
				BytesIn:  parseInt64(rec.attrs["bytes-in"]),
				BytesOut: parseInt64(rec.attrs["bytes-out"]),
			}
			stats.IsActive = true
		}
		stats.TotalBytes = stats.Account.BytesIn + stats.Account.BytesOut
		return nil
	})
	observeDeviceOp("get_user_statistics", start, err)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// classify maps device trap messages onto the domain error set. Connection
// and protocol errors pass through untouched; unrecognized traps surface
// as-is so nothing gets silently rewritten.
func (c *Client) classify(op string, err error) error {
	trap, ok := err.(*TrapError)
	if !ok {
		return err
	}
	msg := strings.ToLower(trap.Message)
	switch {
	case strings.Contains(msg, "already have user"),
		strings.Contains(msg, "failure: already have"):
		return fmt.Errorf("%s: %w", op, ErrDuplicateUsername)
	case strings.Contains(msg, "input does not match any value of profile"):
		return fmt.Errorf("%s: %w", op, ErrInvalidProfile)
	case strings.Contains(msg, "no such item"):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	default:
		return trap
	}
}

func recordToAccount(rec *record) *VoucherAccount {
	return &VoucherAccount{
		Username:       rec.attrs["name"],
		Profile:        rec.attrs["profile"],
		TimeLimit:      rec.attrs["limit-uptime"],
		DataLimitBytes: parseInt64(rec.attrs["limit-bytes-total"]),
		BytesIn:        parseInt64(rec.attrs["bytes-in"]),
		BytesOut:       parseInt64(rec.attrs["bytes-out"]),
		Comment:        rec.attrs["comment"],
		Disabled:       rec.attrs["disabled"] == "true",
	}
}

func parseInt64(s string) int64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
