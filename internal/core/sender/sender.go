// Copyright 2025 CompliK Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sender implements the event channel: one TCP connection to the
// collector with best-effort, at-most-once delivery and lazy reconnection.
//
// A Sender belongs to exactly one goroutine. Only Connected may be called
// from elsewhere.
package sender

import (
	"fmt"
	"net"
	"strconv"
	"syscall"
	"time"

	legacy "github.com/DasSecurity-HatLab/roundworm/pkg/logger/legacy"
	"github.com/DasSecurity-HatLab/roundworm/pkg/metrics"
	"github.com/DasSecurity-HatLab/roundworm/pkg/models"
	"github.com/sirupsen/logrus"
	"github.com/tevino/abool"
	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"
)

const keepAlivePeriod = 15 * time.Second

// Sender owns one connection to the collector. Its health is either
// connected or disconnected; a failed liveness probe or a failed write moves
// it to disconnected, and a successful reconnect moves it back.
type Sender struct {
	name         string
	addr         string
	writeTimeout time.Duration

	conn      net.Conn
	connected *abool.AtomicBool
	limiter   *rate.Limiter

	dial  func() (net.Conn, error)
	probe func(net.Conn) error
}

// New creates a disconnected Sender for the collector described by cfg.
// The name labels its logs and metrics.
func New(name string, cfg models.CollectorConfig) *Sender {
	s := &Sender{
		name:         name,
		addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(int(cfg.Port))),
		writeTimeout: cfg.WriteTimeout,
		connected:    abool.New(),
		probe:        peerName,
	}
	if cfg.Reconnect.Rate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.Reconnect.Rate), cfg.Reconnect.Burst)
	}

	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: keepAlivePeriod,
		Control:   reuseAddr,
	}
	s.dial = func() (net.Conn, error) {
		return dialer.Dial("tcp", s.addr)
	}
	metrics.ChannelConnected.WithLabelValues(name).Set(0)
	return s
}

// Open connects to the collector, replacing any previous connection.
func (s *Sender) Open() error {
	conn, err := s.dial()
	if err != nil {
		return fmt.Errorf("failed to connect to collector %s: %w", s.addr, err)
	}
	s.adopt(conn)
	return nil
}

// Send writes one encoded record. It never blocks on an unreachable
// collector and never reports failure: a record sent while the channel is
// down, or whose write fails, is lost.
func (s *Sender) Send(line []byte) {
	if !s.connected.IsSet() {
		s.reconnect()
		metrics.LinesDroppedTotal.WithLabelValues(s.name, metrics.DropDisconnected).Inc()
		return
	}

	if err := s.probe(s.conn); err != nil {
		s.markDown(err, "Collector connection lost")
		metrics.LinesDroppedTotal.WithLabelValues(s.name, metrics.DropProbeFailed).Inc()
		return
	}

	if s.writeTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	if _, err := s.conn.Write(line); err != nil {
		s.markDown(err, "Write to collector failed")
		metrics.LinesDroppedTotal.WithLabelValues(s.name, metrics.DropWriteFailed).Inc()
		return
	}
	metrics.LinesSentTotal.WithLabelValues(s.name).Inc()
}

// Connected reports the channel's current health.
func (s *Sender) Connected() bool {
	return s.connected.IsSet()
}

// Close releases the connection.
func (s *Sender) Close() error {
	s.connected.UnSet()
	metrics.ChannelConnected.WithLabelValues(s.name).Set(0)
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

func (s *Sender) reconnect() {
	if s.limiter != nil && !s.limiter.Allow() {
		metrics.ReconnectAttemptsTotal.WithLabelValues(s.name, "throttled").Inc()
		return
	}
	if err := s.Open(); err != nil {
		metrics.ReconnectAttemptsTotal.WithLabelValues(s.name, "failed").Inc()
		legacy.L.WithFields(logrus.Fields{
			"channel": s.name,
		}).WithError(err).Debug("Reconnect failed")
		return
	}
	metrics.ReconnectAttemptsTotal.WithLabelValues(s.name, "succeeded").Inc()
	legacy.L.WithFields(logrus.Fields{
		"channel":   s.name,
		"collector": s.addr,
	}).Info("Reconnected to collector")
}

func (s *Sender) adopt(conn net.Conn) {
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.conn = conn
	s.connected.Set()
	metrics.ChannelConnected.WithLabelValues(s.name).Set(1)
}

func (s *Sender) markDown(err error, msg string) {
	legacy.L.WithFields(logrus.Fields{
		"channel":   s.name,
		"collector": s.addr,
	}).WithError(err).Warn(msg)
	_ = s.Close()
}

// peerName asks the kernel for the peer address of the socket. It fails
// once the connection has been torn down.
func peerName(conn net.Conn) error {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return nil
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return err
	}
	var probeErr error
	if err := raw.Control(func(fd uintptr) {
		_, probeErr = unix.Getpeername(int(fd))
	}); err != nil {
		return err
	}
	return probeErr
}

func reuseAddr(network, address string, c syscall.RawConn) error {
	var optErr error
	if err := c.Control(func(fd uintptr) {
		optErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	}); err != nil {
		return err
	}
	return optErr
}
