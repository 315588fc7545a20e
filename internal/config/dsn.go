package config

import (
	"net"
	neturl "net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// DSNValue returns the explicit DSN or URL when set, otherwise a DSN
// assembled from the normalized connection fields.
func (c DatabaseRuntimeConfig) DSNValue() string {
	if c.DSN != "" {
		return c.DSN
	}
	if c.URL != "" {
		return c.URL
	}

	mc := mysql.NewConfig()
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	mc.User = c.User
	mc.Passwd = c.Password
	mc.DBName = c.Name
	mc.ParseTime = c.ParseTime
	mc.Loc = resolveDBLocation(c.Loc)
	mc.Params = map[string]string{"charset": c.Charset}
	for key, value := range c.Params {
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		switch {
		case key == "" || value == "":
		case key == "parseTime":
			mc.ParseTime, _ = strconv.ParseBool(value)
		case key == "loc":
			mc.Loc = resolveDBLocation(value)
		default:
			mc.Params[key] = value
		}
	}
	return mc.FormatDSN()
}

func resolveDBLocation(name string) *time.Location {
	if name == "" || name == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.Local
	}
	return loc
}

// URLValue returns the explicit redis URL when set, otherwise one built from
// the normalized host, port, database and credentials.
func (c RedisRuntimeConfig) URLValue() string {
	if c.URL != "" {
		return c.URL
	}

	db := c.DB
	if db < 0 {
		db = defaultRedisDB
	}
	scheme := c.Scheme
	if scheme != "redis" && scheme != "rediss" {
		scheme = "redis"
	}
	u := neturl.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + strconv.Itoa(db),
	}
	switch {
	case c.Username != "" && c.Password != "":
		u.User = neturl.UserPassword(c.Username, c.Password)
	case c.Username != "":
		u.User = neturl.User(c.Username)
	case c.Password != "":
		u.User = neturl.UserPassword("", c.Password)
	}

	query := neturl.Values{}
	for key, value := range c.Params {
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if key != "" && value != "" {
			query.Set(key, value)
		}
	}
	u.RawQuery = query.Encode()
	return u.String()
}
