package identity

import (
	"time"

	"github.com/rs/zerolog/log"
)

// DevicePrompt is what a user needs to complete a device login.
type DevicePrompt struct {
	VerificationURI         string
	VerificationURIComplete string
	UserCode                string
	Expiry                  time.Time
}

// Prompter shows a device login prompt to the user.
type Prompter interface {
	Prompt(DevicePrompt)
}

type PrompterFunc func(DevicePrompt)

func (f PrompterFunc) Prompt(p DevicePrompt) { f(p) }

// LogPrompter writes the prompt to the log.
var LogPrompter = PrompterFunc(func(p DevicePrompt) {
	log.Info().
		Str("verification_uri", p.VerificationURI).
		Str("user_code", p.UserCode).
		Time("expires", p.Expiry).
		Msg("Login required, open the verification URI and enter the code")
})

// MultiPrompter forwards a prompt to every prompter.
func MultiPrompter(prompters ...Prompter) Prompter {
	return PrompterFunc(func(p DevicePrompt) {
		for _, pr := range prompters {
			if pr != nil {
				pr.Prompt(p)
			}
		}
	})
}
