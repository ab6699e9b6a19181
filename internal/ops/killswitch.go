package ops

import (
	"context"

	"github.com/thisis/placesguard/internal/killswitch"
)

// KillSwitchOutput is the state of the remote flags.
type KillSwitchOutput struct {
	Active bool             `json:"active"`
	Flags  killswitch.Flags `json:"flags"`
}

// KillSwitchStatus reads the flags document.
func (s *Service) KillSwitchStatus(ctx context.Context) (*KillSwitchOutput, error) {
	flags, err := s.sw.Flags(ctx)
	if err != nil {
		return nil, err
	}
	return &KillSwitchOutput{Active: flags.Active(), Flags: flags}, nil
}

// KillSwitchActivateInput contains parameters for KillSwitchActivate.
type KillSwitchActivateInput struct {
	Reason string
}

// KillSwitchActivate stops all paid calls until deactivated.
func (s *Service) KillSwitchActivate(ctx context.Context, input KillSwitchActivateInput) (*KillSwitchOutput, error) {
	if err := s.sw.Activate(ctx, input.Reason); err != nil {
		return nil, err
	}
	return s.KillSwitchStatus(ctx)
}

// KillSwitchDeactivate clears the emergency shutdown. Paid calls resume
// only if places are also enabled.
func (s *Service) KillSwitchDeactivate(ctx context.Context) (*KillSwitchOutput, error) {
	if err := s.sw.Deactivate(ctx); err != nil {
		return nil, err
	}
	return s.KillSwitchStatus(ctx)
}

// SetPlacesInput contains parameters for SetPlaces.
type SetPlacesInput struct {
	Enabled bool
}

// SetPlaces flips the non-emergency placesEnabled flag.
func (s *Service) SetPlaces(ctx context.Context, input SetPlacesInput) (*KillSwitchOutput, error) {
	if err := s.sw.SetPlacesEnabled(ctx, input.Enabled); err != nil {
		return nil, err
	}
	return s.KillSwitchStatus(ctx)
}
