package appif

import (
	"context"
	"fmt"

	"github.com/creditmesh/meshnode/funder"
	"github.com/creditmesh/meshnode/invoice"
	"github.com/creditmesh/meshnode/persist"
)

// envelope is one queued AppRequest awaiting dispatch on Server's single
// goroutine, the same queries-channel shape server.go's connectPeerMsg /
// listPeersMsg use to serialize every mutation of lnd's server state
// through one select loop.
type envelope struct {
	req   AppRequest
	perms AppPermissions
	resp  chan envelopeResult
}

type envelopeResult struct {
	msg     AppServerToApp
	dropped bool
	err     error
}

// Server is the single writer of spec.md §5: every AppRequest is handled on
// one goroutine and applied to the funder or the invoice book. AddFriend,
// RemoveFriend, EnableFriend, DisableFriend, SetFriendRate,
// CreateTransaction and CommitInvoice are then appended to persist.Store as
// a Mutation before the response is returned. SetFriendName,
// SetFriendRemoteMaxDebt, OpenFriend, CloseFriend, CreatePayment,
// AckClosePayment, AddInvoice and CancelInvoice change in-memory state
// only; no Mutation is logged for them, so a restart does not replay them.
type Server struct {
	fd       *funder.Funder
	store    persist.Store
	invoices *invoice.Book
	seq      uint64

	queries chan *envelope
}

// NewServer wires a funder, its durability backend and its invoice book
// into one dispatcher. seq is the last mutation sequence already in the
// store; callers recovering from a snapshot pass the sequence the snapshot
// + replay left off at, and each logged mutation replaces it with the
// sequence the store assigned.
func NewServer(fd *funder.Funder, store persist.Store, invoices *invoice.Book, seq uint64) *Server {
	return &Server{
		fd:       fd,
		store:    store,
		invoices: invoices,
		seq:      seq,
		queries:  make(chan *envelope, 64),
	}
}

// Run processes queued requests until ctx is done. It is meant to run on
// its own goroutine for the process lifetime of one meshnoded instance.
func (s *Server) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-s.queries:
			msg, dropped, err := s.handle(e.req, e.perms)
			e.resp <- envelopeResult{msg: msg, dropped: dropped, err: err}
		}
	}
}

// Submit enqueues req for handling under perms and blocks for its result.
// A dropped request (req.requiredPermission() not granted by perms) yields
// (nil, nil) with no state-visible effect, per spec.md §6.
func (s *Server) Submit(ctx context.Context, req AppRequest, perms AppPermissions) (AppServerToApp, error) {
	e := &envelope{req: req, perms: perms, resp: make(chan envelopeResult, 1)}
	select {
	case s.queries <- e:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-e.resp:
		if r.dropped {
			return nil, nil
		}
		return r.msg, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Server) handle(req AppRequest, perms AppPermissions) (AppServerToApp, bool, error) {
	if !Allowed(req, perms) {
		return nil, true, nil
	}

	switch r := req.(type) {
	case AddFriendRequest:
		s.fd.AddFriend(r.RemotePK, r.Name)
		return nil, false, s.log(&persist.AddFriendMutation{RemotePK: r.RemotePK, Name: r.Name})

	case RemoveFriendRequest:
		if err := s.fd.RemoveFriend(r.RemotePK); err != nil {
			return nil, false, err
		}
		return nil, false, s.log(&persist.RemoveFriendMutation{RemotePK: r.RemotePK})

	case SetFriendNameRequest:
		if err := s.fd.SetFriendName(r.RemotePK, r.Name); err != nil {
			return nil, false, err
		}
		return nil, false, nil

	case EnableFriendRequest:
		if err := s.fd.EnableFriend(r.RemotePK); err != nil {
			return nil, false, err
		}
		return nil, false, s.log(&persist.SetFriendStateMutation{RemotePK: r.RemotePK, Disabled: false})

	case DisableFriendRequest:
		if err := s.fd.DisableFriend(r.RemotePK); err != nil {
			return nil, false, err
		}
		return nil, false, s.log(&persist.SetFriendStateMutation{RemotePK: r.RemotePK, Disabled: true})

	case SetFriendRemoteMaxDebtRequest:
		if err := s.fd.SetFriendRemoteMaxDebt(r.RemotePK, r.Currency, r.MaxDebt); err != nil {
			return nil, false, err
		}
		return nil, false, nil

	case SetFriendRateRequest:
		if err := s.fd.SetFriendRate(r.RemotePK, r.Rate); err != nil {
			return nil, false, err
		}
		return nil, false, s.log(&persist.SetRateMutation{RemotePK: r.RemotePK, Mul: r.Rate.Mul, Add: r.Rate.Add})

	case OpenFriendRequest:
		if err := s.fd.OpenFriend(r.RemotePK, r.Currency); err != nil {
			return nil, false, err
		}
		return nil, false, nil

	case CloseFriendRequest:
		if err := s.fd.CloseFriend(r.RemotePK, r.Currency); err != nil {
			return nil, false, err
		}
		return nil, false, nil

	case CreatePaymentRequest:
		if _, err := s.fd.CreatePayment(r.InvoiceID, r.Currency, r.TotalDestPayment); err != nil {
			return nil, false, err
		}
		return nil, false, nil

	case CreateTransactionRequest:
		op, err := s.fd.CreateTransaction(r.InvoiceID, r.Route, r.DestPayment, r.LeftFees)
		if err != nil {
			return nil, false, err
		}
		return nil, false, s.log(&persist.ApplyOpMutation{RemotePK: r.Route[1], Incoming: false, Op: op})

	case RequestClosePaymentRequest:
		succeeded, terminal, found := s.fd.PaymentOutcome(r.InvoiceID)
		if !found {
			return nil, false, fmt.Errorf("appif: unknown payment %s", r.InvoiceID)
		}
		return ResponseClosePayment{InvoiceID: r.InvoiceID, Succeeded: succeeded && terminal}, false, nil

	case AckClosePaymentRequest:
		if err := s.fd.AckPayment(r.InvoiceID); err != nil {
			return nil, false, err
		}
		return nil, false, nil

	case AddInvoiceRequest:
		if err := s.invoices.AddInvoice(r.InvoiceID, r.Currency, r.TotalDestPayment); err != nil {
			return nil, false, err
		}
		return nil, false, nil

	case CancelInvoiceRequest:
		if err := s.invoices.CancelInvoice(r.InvoiceID); err != nil {
			return nil, false, err
		}
		return nil, false, nil

	case CommitInvoiceRequest:
		mc, err := buildMultiCommit(r)
		if err != nil {
			return nil, false, err
		}
		if err := s.fd.CommitInvoice(mc); err != nil {
			return nil, false, err
		}
		return nil, false, s.log(&persist.CommitInvoiceMutation{
			InvoiceID: r.InvoiceID,
			Currency:  r.Currency,
			Total:     r.TotalDestPayment,
		})

	default:
		return nil, false, fmt.Errorf("appif: unhandled request kind %T", req)
	}
}

func buildMultiCommit(r CommitInvoiceRequest) (*invoice.MultiCommit, error) {
	commits := make([]invoice.Commit, 0, len(r.Commits))
	for _, c := range r.Commits {
		commits = append(commits, invoice.Commit{
			ResponseHash:   c.ResponseHash,
			DestPayment:    c.DestPayment,
			SrcPlainLock:   c.SrcPlainLock,
			DestHashedLock: c.DestHashedLock,
			Signature:      c.Signature,
		})
	}
	mc := &invoice.MultiCommit{
		InvoiceID:        r.InvoiceID,
		Currency:         r.Currency,
		TotalDestPayment: r.TotalDestPayment,
		Commits:          commits,
	}
	if err := mc.Validate(); err != nil {
		return nil, err
	}
	return mc, nil
}

func (s *Server) log(m persist.Mutation) error {
	seq, err := s.store.AppendMutation(m)
	if err != nil {
		return err
	}
	s.seq = seq
	return nil
}
