// Package fakebackend is an in-process stand-in for the visualization backend.
// It serves the same routes over httptest so clients can be exercised end to
// end without a broker.
package fakebackend

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/net/websocket"

	"kafkaviz/internal/domain"
	"kafkaviz/internal/wire"
)

// Handshake is what a search client sent before matches started
type Handshake struct {
	Path    string
	Frames  []string
	Keyword string
}

// Server holds topics and their messages in memory
type Server struct {
	// PollInterval is the delay between poll snapshots
	PollInterval time.Duration
	// PollLifetime closes a poll connection after this long when non-zero
	PollLifetime time.Duration

	mu            sync.Mutex
	order         []string
	topics        map[string]*topicData
	requests      []string
	searches      []Handshake
	pollFrames    map[string][]string
	searchFrames  map[string][]string
	pollConns     map[*websocket.Conn]struct{}
	searchConns   map[*websocket.Conn]struct{}
	pollDials     int
	publishStatus int
	topicsStatus  int
	rawTopics     string

	ts *httptest.Server
}

type topicData struct {
	replication int
	partitions  []int
	messages    map[int][]domain.Message
	next        int
}

// New starts a fake backend. Call Close when done.
func New() *Server {
	s := &Server{
		PollInterval: 20 * time.Millisecond,
		topics:       make(map[string]*topicData),
		pollFrames:   make(map[string][]string),
		searchFrames: make(map[string][]string),
		pollConns:    make(map[*websocket.Conn]struct{}),
		searchConns:  make(map[*websocket.Conn]struct{}),
	}
	s.ts = httptest.NewServer(s.Router())
	return s
}

// Router builds the route table. Order matters: the search socket and poll
// routes must win over the partition data route.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.UseEncodedPath()
	r.Use(s.record)

	r.HandleFunc("/topics", s.handleTopics).Methods(http.MethodGet)
	r.Handle("/topics/socket/{topic}/{keyword}", websocket.Handler(s.handleSearch))
	r.Handle("/topics/{topic}/poll", websocket.Handler(s.handlePoll))
	r.HandleFunc("/topics/{topic}/{partition}/{offsetRange}", s.handleMessages).Methods(http.MethodGet)
	r.HandleFunc("/topics/{topic}", s.handlePublish).Methods(http.MethodPost)
	return r
}

// Close shuts the server down and drops open sockets
func (s *Server) Close() {
	s.DropPollConnections()
	s.DropSearchConnections()
	s.ts.CloseClientConnections()
	s.ts.Close()
}

// URL is the http base URL
func (s *Server) URL() *url.URL {
	u, _ := url.Parse(s.ts.URL)
	return u
}

// SocketURL is the ws base URL
func (s *Server) SocketURL() *url.URL {
	u := s.URL()
	u.Scheme = "ws"
	return u
}

// AddTopic registers a topic with the given partition ids
func (s *Server) AddTopic(name string, replication int, partitionIDs ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.topics[name]; !ok {
		s.order = append(s.order, name)
	}
	s.topics[name] = &topicData{
		replication: replication,
		partitions:  append([]int(nil), partitionIDs...),
		messages:    make(map[int][]domain.Message),
	}
}

// Append adds a message to a partition and returns its offset
func (s *Server) Append(topic string, partition int, payload string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(topic, partition, payload)
}

func (s *Server) appendLocked(topic string, partition int, payload string) int64 {
	td, ok := s.topics[topic]
	if !ok {
		return -1
	}
	offset := int64(len(td.messages[partition]))
	td.messages[partition] = append(td.messages[partition], domain.Message{Offset: offset, Payload: payload})
	return offset
}

// Topic returns the current snapshot of one topic
func (s *Server) Topic(name string) (domain.Topic, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(name)
}

func (s *Server) snapshotLocked(name string) (domain.Topic, bool) {
	td, ok := s.topics[name]
	if !ok {
		return domain.Topic{}, false
	}
	t := domain.Topic{
		Name:              name,
		PartitionCount:    len(td.partitions),
		ReplicationFactor: td.replication,
		Partitions:        make([]domain.Partition, 0, len(td.partitions)),
	}
	for _, id := range td.partitions {
		t.Partitions = append(t.Partitions, domain.Partition{ID: id, MessageCount: int64(len(td.messages[id]))})
	}
	return t, true
}

// FailPublish makes POST /topics/{topic} answer with status. Zero restores success.
func (s *Server) FailPublish(status int) {
	s.mu.Lock()
	s.publishStatus = status
	s.mu.Unlock()
}

// FailTopics makes GET /topics answer with status. Zero restores success.
func (s *Server) FailTopics(status int) {
	s.mu.Lock()
	s.topicsStatus = status
	s.mu.Unlock()
}

// SetRawTopics replaces the GET /topics body verbatim. Empty restores normal output.
func (s *Server) SetRawTopics(body string) {
	s.mu.Lock()
	s.rawTopics = body
	s.mu.Unlock()
}

// InjectPollFrame queues a raw frame that the poll channel for topic sends
// before its next snapshot
func (s *Server) InjectPollFrame(topic, frame string) {
	s.mu.Lock()
	s.pollFrames[topic] = append(s.pollFrames[topic], frame)
	s.mu.Unlock()
}

// InjectSearchFrame queues a raw frame sent ahead of the matches of the next
// search on topic
func (s *Server) InjectSearchFrame(topic, frame string) {
	s.mu.Lock()
	s.searchFrames[topic] = append(s.searchFrames[topic], frame)
	s.mu.Unlock()
}

// DropPollConnections closes every open poll socket from the server side
func (s *Server) DropPollConnections() {
	s.dropAll(s.pollConns)
}

// DropSearchConnections closes every open search socket from the server side
func (s *Server) DropSearchConnections() {
	s.dropAll(s.searchConns)
}

// OpenSearches counts search sockets currently held open
func (s *Server) OpenSearches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.searchConns)
}

func (s *Server) dropAll(set map[*websocket.Conn]struct{}) {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(set))
	for c := range set {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
}

// PollDials counts poll handshakes received so far
func (s *Server) PollDials() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pollDials
}

// Requests lists "METHOD path?query" for every request seen
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// Searches lists the search handshakes seen
func (s *Server) Searches() []Handshake {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Handshake(nil), s.searches...)
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.RequestURI())
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	wanted := r.Form["topic"]

	s.mu.Lock()
	status, raw := s.topicsStatus, s.rawTopics
	names := s.order
	if len(wanted) > 0 {
		names = wanted
	}
	var topics []domain.Topic
	for _, name := range names {
		if t, ok := s.snapshotLocked(name); ok {
			topics = append(topics, t)
		}
	}
	s.mu.Unlock()

	if status != 0 {
		http.Error(w, "metadata unavailable", status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if raw != "" {
		fmt.Fprint(w, raw)
		return
	}
	if len(topics) == 0 {
		fmt.Fprint(w, `{"result":[{"name":"","partitions":0,"replication":0,"partition_info":null}]}`)
		return
	}
	body, err := wire.EncodeEnvelope(topics)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	_, _ = w.Write(body)
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	vars := unescapedVars(r)
	partition, err := strconv.Atoi(vars["partition"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	startText, endText, ok := strings.Cut(vars["offsetRange"], "-")
	start, err1 := strconv.ParseInt(startText, 10, 64)
	end, err2 := strconv.ParseInt(endText, 10, 64)
	if !ok || err1 != nil || err2 != nil {
		http.Error(w, "bad offset range", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	td, found := s.topics[vars["topic"]]
	var out []wire.MessageRecord
	if found {
		for _, m := range td.messages[partition] {
			if m.Offset >= start && m.Offset <= end {
				out = append(out, wire.MessageRecord{Offset: m.Offset, Message: m.Payload})
			}
		}
	}
	s.mu.Unlock()

	if !found {
		http.Error(w, "unknown topic", http.StatusNotFound)
		return
	}
	if out == nil {
		out = []wire.MessageRecord{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	topic := unescapedVars(r)["topic"]
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	data := r.FormValue("data")

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.publishStatus != 0 {
		http.Error(w, "broker unavailable", s.publishStatus)
		return
	}
	td, ok := s.topics[topic]
	if !ok || len(td.partitions) == 0 {
		http.Error(w, "unknown topic", http.StatusNotFound)
		return
	}
	partition := td.partitions[td.next%len(td.partitions)]
	td.next++
	s.appendLocked(topic, partition, data)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePoll(ws *websocket.Conn) {
	defer ws.Close()

	var topic string
	if err := websocket.Message.Receive(ws, &topic); err != nil {
		return
	}

	s.mu.Lock()
	s.pollConns[ws] = struct{}{}
	s.pollDials++
	interval, lifetime := s.PollInterval, s.PollLifetime
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.pollConns, ws)
		s.mu.Unlock()
	}()

	var deadline <-chan time.Time
	if lifetime > 0 {
		timer := time.NewTimer(lifetime)
		defer timer.Stop()
		deadline = timer.C
	}

	// reader notices the client going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		var discard string
		for websocket.Message.Receive(ws, &discard) == nil {
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-gone:
			return
		case <-deadline:
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		frames := s.pollFrames[topic]
		delete(s.pollFrames, topic)
		snap, ok := s.snapshotLocked(topic)
		s.mu.Unlock()

		if ok {
			body, err := wire.EncodeEnvelope([]domain.Topic{snap})
			if err != nil {
				return
			}
			frames = append(frames, string(body))
		}
		for _, f := range frames {
			if err := websocket.Message.Send(ws, f); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleSearch(ws *websocket.Conn) {
	defer ws.Close()

	s.mu.Lock()
	s.searchConns[ws] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.searchConns, ws)
		s.mu.Unlock()
	}()

	hs := Handshake{Path: ws.Request().URL.EscapedPath()}
	for i := 0; i < 2; i++ {
		var frame string
		if err := websocket.Message.Receive(ws, &frame); err != nil {
			return
		}
		hs.Frames = append(hs.Frames, frame)
	}
	hs.Keyword = unescapedVars(ws.Request())["keyword"]

	topic := hs.Frames[0]
	keyword := hs.Frames[1]

	s.mu.Lock()
	s.searches = append(s.searches, hs)
	frames := s.searchFrames[topic]
	delete(s.searchFrames, topic)
	var matches []wire.MatchRecord
	if td, ok := s.topics[topic]; ok {
		ids := append([]int(nil), td.partitions...)
		sort.Ints(ids)
		for _, id := range ids {
			for _, m := range td.messages[id] {
				if strings.Contains(m.Payload, keyword) {
					matches = append(matches, wire.MatchRecord{Partition: id, Offset: m.Offset, Message: m.Payload})
				}
			}
		}
	}
	s.mu.Unlock()

	for _, f := range frames {
		if err := websocket.Message.Send(ws, f); err != nil {
			return
		}
	}
	for _, m := range matches {
		if err := websocket.JSON.Send(ws, m); err != nil {
			return
		}
	}

	// hold the channel open until the client leaves
	var discard string
	for websocket.Message.Receive(ws, &discard) == nil {
	}
}

func unescapedVars(r *http.Request) map[string]string {
	vars := mux.Vars(r)
	out := make(map[string]string, len(vars))
	for k, v := range vars {
		if u, err := url.PathUnescape(v); err == nil {
			v = u
		}
		out[k] = v
	}
	return out
}
