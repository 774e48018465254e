package factory

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/config"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"
)

const (
	defaultCharset         = "utf8mb4"
	defaultConnMaxLifetime = 4 * time.Minute
	minOpenConns           = 10
	maxDerivedOpenConns    = 50
)

// NewDatabaseConnection opens the session store, with read replicas when
// configured, and sizes the pool for the configured session load.
func NewDatabaseConnection(ctx context.Context, appCnf *config.AppConfig) error {
	info := appCnf.DatabaseInfo
	log := appCnf.Logger.WithField("factory", "database")

	dsn, err := mysqlDSN(&info, info.Host, info.Port, info.Username, info.Password)
	if err != nil {
		return err
	}

	cnf := &gorm.Config{
		Logger: logger.New(log, logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogLevel(appCnf.Client.Debug),
			IgnoreRecordNotFoundError: true,
			Colorful:                  appCnf.Client.Debug,
		}),
	}

	db, err := gorm.Open(mysql.New(mysql.Config{DSN: dsn}), cnf)
	if err != nil {
		return err
	}

	if len(info.Replicas) > 0 {
		log.Infof("found %d read replicas, configuring dbresolver", len(info.Replicas))
		replicas := make([]gorm.Dialector, 0, len(info.Replicas))
		for _, r := range info.Replicas {
			r = replicaWithDefaults(r, &info)
			replicaDsn, err := mysqlDSN(&info, r.Host, r.Port, r.Username, r.Password)
			if err != nil {
				return fmt.Errorf("replica %s: %w", r.Host, err)
			}
			replicas = append(replicas, mysql.Open(replicaDsn))
		}

		if err = db.Use(dbresolver.Register(dbresolver.Config{
			Replicas:          replicas,
			Policy:            dbresolver.RandomPolicy{},
			TraceResolverMode: appCnf.Client.Debug,
		})); err != nil {
			return err
		}
	}

	d, err := db.DB()
	if err != nil {
		return err
	}
	if err = d.PingContext(ctx); err != nil {
		return err
	}

	openConns := maxOpenConns(&info, &appCnf.SessionSettings)
	d.SetConnMaxLifetime(connMaxLifetime(&info))
	d.SetMaxOpenConns(openConns)
	d.SetMaxIdleConns(openConns)
	log.WithField("maxOpenConns", openConns).Infoln("connected to database")

	appCnf.DB = db
	return nil
}

// mysqlDSN builds the driver DSN for one server of the configured database.
func mysqlDSN(info *config.DatabaseInfo, host string, port int32, user, password string) (string, error) {
	c := mysqldriver.NewConfig()
	c.User = user
	c.Passwd = password
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(host, strconv.Itoa(int(port)))
	c.DBName = info.DBName
	c.ParseTime = true

	charset := defaultCharset
	if info.Charset != nil && *info.Charset != "" {
		charset = *info.Charset
	}
	c.Params = map[string]string{"charset": charset}

	c.Loc = time.UTC
	if info.Loc != nil && *info.Loc != "" {
		loc, err := time.LoadLocation(*info.Loc)
		if err != nil {
			return "", fmt.Errorf("invalid database loc %q: %w", *info.Loc, err)
		}
		c.Loc = loc
	}

	return c.FormatDSN(), nil
}

// replicaWithDefaults fills what a replica leaves out from the primary.
func replicaWithDefaults(r config.ReplicaDBInfo, primary *config.DatabaseInfo) config.ReplicaDBInfo {
	if r.Username == "" {
		r.Username = primary.Username
	}
	if r.Password == "" {
		r.Password = primary.Password
	}
	if r.Port == 0 {
		r.Port = primary.Port
	}
	return r
}

// maxOpenConns honours max_open_conns, otherwise one connection per ten
// allowed sessions within [minOpenConns, maxDerivedOpenConns].
func maxOpenConns(info *config.DatabaseInfo, sessions *config.SessionSettings) int {
	if info.MaxOpenConns != nil && *info.MaxOpenConns > 0 {
		return *info.MaxOpenConns
	}
	return min(max(sessions.MaxSessions/10, minOpenConns), maxDerivedOpenConns)
}

func connMaxLifetime(info *config.DatabaseInfo) time.Duration {
	if info.ConnMaxLifetime != nil && *info.ConnMaxLifetime > 0 {
		return *info.ConnMaxLifetime
	}
	return defaultConnMaxLifetime
}

func gormLogLevel(debug bool) logger.LogLevel {
	if debug {
		return logger.Info
	}
	return logger.Warn
}
