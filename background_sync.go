package schemaregistry

import (
	"fmt"
	"sync"
	"time"

	"github.com/tryfix/log"
)

type backgroundSync struct {
	syncInterval time.Duration
	registry     *Registry
	logger       log.Logger
	done         chan struct{}
	stopOnce     sync.Once
}

// startBackgroundSync starts a goroutine which periodically polls the registry
// service for new versions of already registered subjects. The returned sync is
// stopped through Registry.Close.
func startBackgroundSync(syncInterval time.Duration, logger log.Logger, registry *Registry) *backgroundSync {
	bgSync := &backgroundSync{
		registry:     registry,
		syncInterval: syncInterval,
		logger:       logger.NewLog(log.Prefixed(`BGSync`)),
		done:         make(chan struct{}),
	}

	ticker := time.NewTicker(bgSync.syncInterval)

	registry.Print()

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				bgSync.checkRegistryAndAdd()
			case <-bgSync.done:
				bgSync.logger.Debug(`New Schema check background routine stopped`)
				return
			}
		}
	}()

	bgSync.logger.Debug(`New Schema check background routine started`)

	return bgSync
}

func (s *backgroundSync) stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
}

func (s *backgroundSync) checkRegistryAndAdd() {
	s.logger.Debug(`Looking for new Schemas...`)
	added := 0
	defer func() {
		s.logger.Debug(fmt.Sprintf(`Looking for new Schemas completed, %d schema/s added`, added))
	}()

	subjects, err := s.registry.client.GetSubjects()
	if err != nil {
		s.logger.Error(fmt.Sprintf(`Error getting subjects due to %s`, err.Error()))
		return
	}

	// If the subject is registered, check for new versions
	for _, subjectName := range subjects {
		if !s.registry.subjectRegistered(subjectName) {
			continue
		}

		versions, err := s.registry.client.GetSchemaVersions(subjectName)
		if err != nil {
			s.logger.Error(fmt.Sprintf(`Error getting schema versions due to %s`, err.Error()))
			continue
		}

		for _, version := range versions {
			if s.registry.hasVersion(subjectName, Version(version)) {
				continue
			}

			schema, err := s.registry.client.GetSchemaByVersion(subjectName, version)
			if err != nil {
				s.logger.Error(fmt.Sprintf(`Error getting schema by version due to %s`, err.Error()))
				continue
			}

			// New versions inherit the unmarshaler of the previously registered version
			// (assumption is the new version stays compatible with the old one)
			fn := s.registry.getUnmarshalerFunc(subjectName)

			if err := s.registry.addSubjectBySchema(schema, subjectName, fn); err != nil {
				s.logger.Error(fmt.Sprintf(`New Schema add failed. [%s:%d] due to %s`,
					subjectName, schema.Version(), err.Error()))
				continue
			}

			s.logger.Info(fmt.Sprintf(`New Schema registered. %s:%d`, subjectName, schema.Version()))

			s.registry.Print()
			added++
		}
	}
}
