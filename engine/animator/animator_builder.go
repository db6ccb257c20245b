package animator

import "go.uber.org/zap"

// AnimatorBuilderOption is a functional option for configuring an Animator during construction.
type AnimatorBuilderOption func(*animator)

// WithLogger is an option builder that sets the animator's logger.
//
// Parameters:
//   - logger: the logger
//
// Returns:
//   - AnimatorBuilderOption: a function that applies the logger to an animator
func WithLogger(logger *zap.Logger) AnimatorBuilderOption {
	return func(a *animator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithInstances is an option builder that registers count instances, each holding the static pose.
//
// Parameters:
//   - count: the number of instances
//
// Returns:
//   - AnimatorBuilderOption: a function that adds the instances to an animator
func WithInstances(count int) AnimatorBuilderOption {
	return func(a *animator) {
		for i := 0; i < count; i++ {
			a.AddInstance()
		}
	}
}
