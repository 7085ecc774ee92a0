// Package printer maintains a printer's broker session, parses its
// status reports, and tracks a single print job through its
// lifecycle.
package printer

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

func mustMarshal(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return b
}

// Endpoint identifies the printer's broker.
type Endpoint struct {
	Host       string
	Port       int
	AccessCode string
	Serial     string
	Username   string // defaults to "bblp"
}

func (e Endpoint) reportTopic() string  { return fmt.Sprintf("device/%s/report", e.Serial) }
func (e Endpoint) requestTopic() string { return fmt.Sprintf("device/%s/request", e.Serial) }

func (e Endpoint) brokerURL() string {
	return fmt.Sprintf("tls://%s:%d", e.Host, e.Port)
}

// connectErrors maps paho's numeric connack/error reasons to the
// human strings an operator needs, mirroring the reference client's
// error_messages table — bad credentials is by far the most common.
var connectErrors = map[byte]string{
	1: "incorrect protocol version",
	2: "invalid client identifier",
	3: "server unavailable",
	4: "bad username or password (check access code)",
	5: "not authorized",
}

// Session maintains one TLS MQTT connection to a printer, parses its
// report stream, and fans parsed reports out to registered
// callbacks.
type Session struct {
	endpoint Endpoint
	logger   *log.Logger

	client mqtt.Client

	mu        sync.Mutex
	connected bool

	seq int64

	cbMu      sync.Mutex
	callbacks map[string]func(Status)

	lastMu     sync.Mutex
	lastReport Status
	hasReport  bool
}

// NewSession creates a session for endpoint. The connection is not
// established until Connect is called.
func NewSession(endpoint Endpoint) *Session {
	if endpoint.Username == "" {
		endpoint.Username = "bblp"
	}
	return &Session{
		endpoint:  endpoint,
		logger:    log.New(log.Writer(), "printer: ", log.LstdFlags),
		callbacks: make(map[string]func(Status)),
	}
}

// Connect opens the broker connection, bounded by timeout, and
// subscribes to the report topic on success. TLS verification is
// disabled: these devices present self-signed certificates, and
// pinning a different CA is not an option the user controls.
func (s *Session) Connect(timeout time.Duration) bool {
	clientID := fmt.Sprintf("printctl-%d", time.Now().UnixNano())

	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.endpoint.brokerURL())
	opts.SetClientID(clientID)
	opts.SetUsername(s.endpoint.Username)
	opts.SetPassword(s.endpoint.AccessCode)
	opts.SetTLSConfig(&tls.Config{InsecureSkipVerify: true})
	opts.SetKeepAlive(60 * time.Second)
	opts.SetAutoReconnect(false)
	opts.SetConnectTimeout(timeout)

	opts.OnConnect = func(mqtt.Client) {
		s.mu.Lock()
		s.connected = true
		s.mu.Unlock()
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		s.mu.Lock()
		s.connected = false
		s.mu.Unlock()
		s.logger.Printf("connection lost: %v", err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return false
	}
	if err := token.Error(); err != nil {
		if ct, ok := token.(*mqtt.ConnectToken); ok {
			if msg, known := connectErrors[ct.ReturnCode()]; known {
				err = fmt.Errorf("%s: %w", msg, err)
			}
		}
		s.logger.Printf("connect failed: %v", err)
		return false
	}

	s.mu.Lock()
	s.client = client
	s.connected = true
	s.mu.Unlock()

	subToken := client.Subscribe(s.endpoint.reportTopic(), 1, s.onMessage)
	if !subToken.WaitTimeout(timeout) || subToken.Error() != nil {
		s.logger.Printf("subscribe to report topic failed: %v", subToken.Error())
		return false
	}

	return true
}

func (s *Session) onMessage(_ mqtt.Client, msg mqtt.Message) {
	status, err := ParseReport(msg.Payload())
	if err != nil {
		return
	}

	s.lastMu.Lock()
	s.lastReport = status
	s.hasReport = true
	s.lastMu.Unlock()

	s.cbMu.Lock()
	cbs := make([]func(Status), 0, len(s.callbacks))
	for _, cb := range s.callbacks {
		cbs = append(cbs, cb)
	}
	s.cbMu.Unlock()

	for _, cb := range cbs {
		cb(status)
	}
}

// Disconnect closes the broker connection.
func (s *Session) Disconnect() {
	s.mu.Lock()
	client := s.client
	s.client = nil
	s.connected = false
	s.mu.Unlock()

	if client != nil {
		client.Disconnect(250)
	}
}

// Connected reports whether the broker connection is currently up.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// RegisterCallback registers fn to receive every parsed report.
func (s *Session) RegisterCallback(name string, fn func(Status)) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	s.callbacks[name] = fn
}

// UnregisterCallback removes a previously registered callback.
func (s *Session) UnregisterCallback(name string) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	delete(s.callbacks, name)
}

// SendCommand publishes {<commandType>: {sequence_id, command,
// fields...}} to the request topic at QoS 1.
func (s *Session) SendCommand(commandType, command string, fields map[string]interface{}) error {
	s.mu.Lock()
	client := s.client
	connected := s.connected
	s.mu.Unlock()

	if !connected || client == nil {
		return fmt.Errorf("printer: not connected")
	}

	body := map[string]interface{}{"sequence_id": fmt.Sprintf("%d", atomic.AddInt64(&s.seq, 1)), "command": command}
	for k, v := range fields {
		body[k] = v
	}
	payload := map[string]interface{}{commandType: body}

	token := client.Publish(s.endpoint.requestTopic(), 1, false, mustMarshal(payload))
	token.Wait()
	return token.Error()
}

// GetStatus requests a full status push and waits briefly for the
// next report, returning the cached report (possibly stale) if none
// arrives in time.
func (s *Session) GetStatus(wait time.Duration) (Status, bool) {
	if !s.Connected() {
		return Status{}, false
	}

	if err := s.SendCommand("pushing", "pushall", nil); err != nil {
		s.logger.Printf("pushall request failed: %v", err)
	}

	time.Sleep(wait)

	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	if !s.hasReport {
		return Status{}, false
	}
	return s.lastReport, true
}

// LastReport returns the most recently parsed report, if any.
func (s *Session) LastReport() (Status, bool) {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	return s.lastReport, s.hasReport
}
