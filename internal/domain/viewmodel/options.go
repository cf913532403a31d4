package viewmodel

import (
	"github.com/okian/careconnect/pkg/logger"
)

// Option applies a configuration option to the ViewModel.
type Option func(*ViewModel)

// WithSections sets which reports are fetched and rendered.
func WithSections(s Sections) Option {
	return func(vm *ViewModel) { vm.sections = s }
}

// WithQueue replaces the default in-memory delivery queue.
func WithQueue(q Queue) Option {
	return func(vm *ViewModel) {
		if q != nil {
			vm.queue = q
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(vm *ViewModel) {
		if l != nil {
			vm.logger = l
		}
	}
}
