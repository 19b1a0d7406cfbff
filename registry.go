package schemaregistry

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/riferrei/srclient"
	"github.com/tryfix/errors"
	"github.com/tryfix/log"
)

// Version is the type to hold default register version options
type Version int

const (
	// VersionLatest constant hold the flag to register the latest version of the subject
	VersionLatest Version = -1
	// VersionAll constant hold the flag to register all the versions of the subject
	VersionAll Version = -2
)

// String returns the registered version type
func (v Version) String() string {
	if v == VersionLatest {
		return `Latest`
	}

	if v == VersionAll {
		return `All`
	}

	return fmt.Sprint(int(v))
}

// UnmarshalerFunc maps the raw payload of a message into a concrete application type.
// Registered per subject and invoked on every Decode.
type UnmarshalerFunc func(unmarshaler Unmarshaler) (v interface{}, err error)

// Subject holds the Schema information of the registered subject
type Subject struct {
	Schema          string          `json:"schema"`  // The textual schema definition
	Subject         string          `json:"subject"` // Subject where the schema is registered for
	Version         Version         `json:"version"` // Version within this subject
	Id              int             `json:"id"`      // Registry's unique id
	UnmarshalerFunc UnmarshalerFunc `json:"-"`
}

type options struct {
	logger        log.Logger
	mockClient    srclient.ISchemaRegistryClient
	username      string
	password      string
	timeout       time.Duration
	bgSync        bool
	syncInterval  time.Duration
	storageSync   bool
	bootstrapSrvs []string
	storageTopic  string
}

// Option is a type to host NewRegistry configurations
type Option func(*options)

// WithBackgroundSync returns a configuration to create a NewRegistry with periodic
// registry polling. Newly created subject versions will register in background and
// the application does not require a restart.
func WithBackgroundSync(syncInterval time.Duration) Option {
	return func(options *options) {
		options.syncInterval = syncInterval
		options.bgSync = true
	}
}

// WithStorageTopicSync returns a configuration to create a NewRegistry which follows
// the registry's kafka storage topic (eg: _schemas) and applies new schema versions
// as they are committed.
func WithStorageTopicSync(bootstrapServers []string, storageTopic string) Option {
	return func(options *options) {
		options.bootstrapSrvs = bootstrapServers
		options.storageTopic = storageTopic
		options.storageSync = true
	}
}

// WithLogger returns a configuration to create a NewRegistry with given PrefixedLogger
func WithLogger(logger log.Logger) Option {
	return func(options *options) {
		options.logger = logger
	}
}

// WithCredentials returns a configuration to create a NewRegistry with basic auth credentials
func WithCredentials(username, password string) Option {
	return func(options *options) {
		options.username = username
		options.password = password
	}
}

// WithTimeout returns a configuration to override the registry http client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(options *options) {
		options.timeout = timeout
	}
}

// WithMockClient replaces the srclient implementation. Meant for examples and tests.
func WithMockClient(client srclient.ISchemaRegistryClient) Option {
	return func(options *options) {
		options.mockClient = client
	}
}

// Registry type holds schema registry details
type Registry struct {
	schemas     map[string]map[Version]*Encoder // subject/version/encoder
	idMap       map[int]*Encoder
	client      srclient.ISchemaRegistryClient
	mu          *sync.RWMutex
	options     *options
	logger      log.Logger
	bgSync      *backgroundSync
	storageSync *storageSync
}

// NewRegistry returns a pointer to a connected Registry with given options or an
// error if it's unable to connect
func NewRegistry(url string, opts ...Option) (*Registry, error) {
	options := new(options)
	for _, opt := range opts {
		opt(options)
	}

	if options.logger == nil {
		options.logger = log.NewNoopLogger()
	}

	client := options.mockClient
	if client == nil {
		c := srclient.NewSchemaRegistryClient(url)
		if options.username != `` {
			c.SetCredentials(options.username, options.password)
		}
		if options.timeout > 0 {
			c.SetTimeout(options.timeout)
		}
		client = c
	}

	r := &Registry{
		schemas: make(map[string]map[Version]*Encoder),
		idMap:   make(map[int]*Encoder),
		client:  client,
		mu:      new(sync.RWMutex),
		options: options,
		logger:  options.logger.NewLog(log.Prefixed(`Registry`)),
	}

	return r, nil
}

// Register fetches the given subject version from the registry service and binds an
// Encoder with the given unmarshaler to it. VersionLatest and VersionAll sentinels
// are accepted in place of a concrete version.
func (r *Registry) Register(subject string, version Version, unmarshalerFunc UnmarshalerFunc) error {
	if version > 0 && r.hasVersion(subject, version) {
		r.logger.Warn(fmt.Sprintf(`subject [%s][%s] already registered`, subject, version))
		return nil
	}

	if version == VersionAll {
		versions, err := r.client.GetSchemaVersions(subject)
		if err != nil {
			return errors.WithPrevious(err, fmt.Sprintf(`cannot fetch versions for subject [%s]`, subject))
		}
		for _, v := range versions {
			if err := r.Register(subject, Version(v), unmarshalerFunc); err != nil {
				return err
			}
		}
		return nil
	}

	var schema *srclient.Schema
	var err error
	if version == VersionLatest {
		schema, err = r.client.GetLatestSchema(subject)
	} else {
		schema, err = r.client.GetSchemaByVersion(subject, int(version))
	}
	if err != nil {
		return errors.WithPrevious(err, fmt.Sprintf(`cannot fetch subject [%s][%s]`, subject, version))
	}

	// sentinel registrations resolve to a concrete version only after the fetch
	if resolved := Version(schema.Version()); r.hasVersion(subject, resolved) {
		r.logger.Warn(fmt.Sprintf(`subject [%s][%s] already registered`, subject, resolved))
		return nil
	}

	if err := r.addSubjectBySchema(schema, subject, unmarshalerFunc); err != nil {
		return err
	}

	r.logger.Info(fmt.Sprintf(`subject [%s][%s] registered`, subject, version))

	return nil
}

// CreateSchema registers a brand new schema under the given subject in the registry
// service and binds an Encoder to the resulting version.
func (r *Registry) CreateSchema(subject, schema string, schemaType srclient.SchemaType, unmarshalerFunc UnmarshalerFunc) error {
	created, err := r.client.CreateSchema(subject, schema, schemaType)
	if err != nil {
		return errors.WithPrevious(err, fmt.Sprintf(`schema create failed for subject [%s]`, subject))
	}

	if err := r.addSubjectBySchema(created, subject, unmarshalerFunc); err != nil {
		return err
	}

	r.logger.Info(fmt.Sprintf(`schema created for subject [%s][%d]`, subject, created.Version()))

	return nil
}

// IsCompatible checks the given schema against the latest registered version of the subject
func (r *Registry) IsCompatible(subject, schema string, schemaType srclient.SchemaType) (bool, error) {
	ok, err := r.client.IsSchemaCompatible(subject, schema, `latest`, schemaType)
	if err != nil {
		return false, errors.WithPrevious(err, fmt.Sprintf(`compatibility check failed for subject [%s]`, subject))
	}

	return ok, nil
}

// Sync starts the configured background schema discovery mechanisms.
//
// Newly created schemas will register in background and the application does not
// require any restart.
func (r *Registry) Sync() error {
	if r.options.bgSync && r.bgSync == nil {
		r.bgSync = startBackgroundSync(r.options.syncInterval, r.logger, r)
	}

	if r.options.storageSync && r.storageSync == nil {
		sync := newStorageSync(r.options.bootstrapSrvs, r.options.storageTopic, r)
		if err := sync.start(); err != nil {
			return err
		}
		r.storageSync = sync
	}

	return nil
}

// Close stops the background schema discovery mechanisms started by Sync.
// Safe to call more than once.
func (r *Registry) Close() error {
	if r.bgSync != nil {
		r.bgSync.stop()
	}

	if r.storageSync != nil {
		return r.storageSync.stop()
	}

	return nil
}

// WithSchema returns the specific encoder which registered at the initialization
// under the subject and version
func (r *Registry) WithSchema(subject string, version Version) *Encoder {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.schemas[subject][version]
	if !ok {
		panic(fmt.Sprintf(`schemaregistry.registry: unregistered subject [%s][%d]`, subject, version))
	}

	return e
}

// WithLatestSchema returns the latest event version encoder registered under given subject
func (r *Registry) WithLatestSchema(subject string) *Encoder {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions, ok := r.schemas[subject]
	if !ok {
		panic(fmt.Sprintf(`schemaregistry.registry: unregistered subject [%s]`, subject))
	}

	var v Version
	for _, encoder := range versions {
		if encoder.subject.Version > v {
			v = encoder.subject.Version
		}
	}

	return versions[v]
}

// GenericEncoder returns a decode only encoder which resolves the schema from the
// id embedded in the message wire prefix
func (r *Registry) GenericEncoder() *GenericEncoder {
	return &GenericEncoder{
		Encoder: &Encoder{registry: r},
	}
}

// addSubjectBySchema binds an Encoder for the fetched schema under the subject.
// Used by Register, CreateSchema and the poll based background sync.
func (r *Registry) addSubjectBySchema(schema *srclient.Schema, subjectName string, unmarshalerFunc UnmarshalerFunc) error {
	// the registry service omits the schema type for avro schemas
	typ := srclient.Avro
	if schema.SchemaType() != nil {
		typ = *schema.SchemaType()
	}

	return r.addSubject(&Subject{
		Schema:          schema.Schema(),
		Id:              schema.ID(),
		Version:         Version(schema.Version()),
		Subject:         subjectName,
		UnmarshalerFunc: unmarshalerFunc,
	}, typ)
}

func (r *Registry) addSubject(s *Subject, typ srclient.SchemaType) error {
	marshaller, err := marshallerFor(typ, s.Schema)
	if err != nil {
		return err
	}

	e := newEncoder(r, s, marshaller)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.schemas[s.Subject] == nil {
		r.schemas[s.Subject] = make(map[Version]*Encoder)
	}

	r.schemas[s.Subject][s.Version] = e
	r.idMap[s.Id] = e

	return nil
}

func (r *Registry) subjectRegistered(subject string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.schemas[subject]
	return ok
}

func (r *Registry) hasVersion(subject string, version Version) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.schemas[subject][version]
	return ok
}

// getUnmarshalerFunc returns the unmarshaler bound to any registered version of the
// subject. New versions found by background sync inherit it on the assumption that
// versions stay backward compatible.
func (r *Registry) getUnmarshalerFunc(subject string) UnmarshalerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, encoder := range r.schemas[subject] {
		if encoder.subject.UnmarshalerFunc != nil {
			return encoder.subject.UnmarshalerFunc
		}
	}

	return nil
}

// marshallerFor picks the Marshaller implementation for the registry schema type
func marshallerFor(typ srclient.SchemaType, schema string) (Marshaller, error) {
	var m Marshaller
	switch typ {
	case srclient.Avro:
		m = NewAvroMarshaller(schema)
	case srclient.Json:
		m = NewJSONMarshaller(schema)
	case srclient.Protobuf:
		m = NewProtoMarshaller()
	default:
		return nil, errors.New(fmt.Sprintf(`unsupported schema type [%s]`, typ))
	}

	if err := m.Init(); err != nil {
		return nil, err
	}

	return m, nil
}

// Print renders the registered subjects as a table through the registry logger
func (r *Registry) Print() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b := new(bytes.Buffer)
	table := tablewriter.NewWriter(b)
	table.SetHeader([]string{`Schema Id`, `Subject`, `Version`, `Unmarshaler`})

	for _, subject := range r.schemas {
		for _, version := range subject {
			table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT})
			table.SetAutoFormatHeaders(true)
			table.Append([]string{
				fmt.Sprint(version.subject.Id),
				fmt.Sprint(version.subject.Subject),
				version.subject.Version.String(),
				fmt.Sprint(version.subject.UnmarshalerFunc != nil),
			})
		}
	}
	table.Render()
	r.logger.Info(fmt.Sprintf("schemas\n%s", b.String()))
}
