package federated

import (
	"context"
	"errors"
	"strings"
)

// Linking preconditions each reject with their own reason. All four must
// hold before a link is attempted; none is retryable.
var (
	// ErrLinkSameEmail indicates the federated and existing emails are equal.
	ErrLinkSameEmail = errors.New("federated and existing email are the same")
	// ErrLinkAccountNotFound indicates no account exists for the asserted
	// existing email.
	ErrLinkAccountNotFound = errors.New("existing account not found")
	// ErrLinkAlreadyLinked indicates the existing account already has a
	// federated identity.
	ErrLinkAlreadyLinked = errors.New("existing account already linked")
	// ErrLinkEmailTaken indicates the federated email is the primary email of
	// a different account.
	ErrLinkEmailTaken = errors.New("federated email belongs to another account")
)

// Account is the directory's view of an existing account.
type Account struct {
	ID              string
	PrimaryEmail    string
	FederatedLinked bool
}

// AccountDirectory is the provider-side lookup and mutation capability the
// linking sub-flow drives. LookupByEmail returns (nil, nil) for a missing
// account.
type AccountDirectory interface {
	LookupByEmail(ctx context.Context, email string) (*Account, error)
	LinkFederated(ctx context.Context, accountID, federatedEmail string) error
	UnlinkFederated(ctx context.Context, accountID string) error
}

// Linker drives the account-linking sub-flow.
type Linker struct {
	directory AccountDirectory
}

// NewLinker creates a linker over the given directory.
func NewLinker(directory AccountDirectory) *Linker {
	return &Linker{directory: directory}
}

// Link verifies all four preconditions, then links the federated email to the
// existing account: the emails differ, the existing account exists, it has no
// federated identity yet, and the federated email is not another account's
// primary email.
func (l *Linker) Link(ctx context.Context, federatedEmail, existingEmail string) error {
	fed := normalize(federatedEmail)
	existing := normalize(existingEmail)

	if fed == existing {
		return ErrLinkSameEmail
	}

	account, err := l.directory.LookupByEmail(ctx, existing)
	if err != nil {
		return err
	}
	if account == nil {
		return ErrLinkAccountNotFound
	}
	if account.FederatedLinked {
		return ErrLinkAlreadyLinked
	}

	other, err := l.directory.LookupByEmail(ctx, fed)
	if err != nil {
		return err
	}
	if other != nil && other.ID != account.ID {
		return ErrLinkEmailTaken
	}

	return l.directory.LinkFederated(ctx, account.ID, fed)
}

// Unlink removes the federated identity from an account. Always attempted
// when called; its failure surfaces independently of any linking attempt.
func (l *Linker) Unlink(ctx context.Context, accountID string) error {
	return l.directory.UnlinkFederated(ctx, accountID)
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
