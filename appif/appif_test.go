package appif

import (
	"context"
	"math/big"
	"testing"

	"github.com/creditmesh/meshnode/ccrypto"
	"github.com/creditmesh/meshnode/friend"
	"github.com/creditmesh/meshnode/funder"
	"github.com/creditmesh/meshnode/invoice"
	"github.com/creditmesh/meshnode/persist"
	"github.com/stretchr/testify/require"
)

const testCurrency ccrypto.Currency = "FST1"

func newFunder(t *testing.T) (*funder.Funder, ccrypto.PublicKey) {
	priv, err := ccrypto.NewPrivateKey()
	require.NoError(t, err)
	signer := ccrypto.NewLocalSigner()
	signer.AddKey(priv)
	return funder.New(priv.PubKey(), signer, invoice.NewBook()), priv.PubKey()
}

func TestAllowedGatesByPermission(t *testing.T) {
	req := AddFriendRequest{RemotePK: ccrypto.PublicKey{}, Name: "bob"}
	require.False(t, Allowed(req, AppPermissions{}))
	require.True(t, Allowed(req, AppPermissions{Config: true}))

	pay := CreatePaymentRequest{}
	require.False(t, Allowed(pay, AppPermissions{Config: true}))
	require.True(t, Allowed(pay, AppPermissions{Buyer: true}))

	inv := AddInvoiceRequest{}
	require.False(t, Allowed(inv, AppPermissions{Buyer: true}))
	require.True(t, Allowed(inv, AppPermissions{Seller: true}))

	require.True(t, Allowed(req, FullPermissions()))
}

func TestServerDropsUnpermittedRequest(t *testing.T) {
	fd, _ := newFunder(t)
	store, err := persist.OpenBolt(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	srv := NewServer(fd, store, invoice.NewBook(), 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Run(ctx)

	remotePK := ccrypto.PublicKey{9}
	msg, err := srv.Submit(ctx, AddFriendRequest{RemotePK: remotePK, Name: "eve"}, AppPermissions{})
	require.NoError(t, err)
	require.Nil(t, msg)

	_, ok := fd.Friends[remotePK]
	require.False(t, ok, "a dropped request must have no state-visible effect")
}

func TestServerAddFriendAppendsMutation(t *testing.T) {
	fd, _ := newFunder(t)
	store, err := persist.OpenBolt(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	srv := NewServer(fd, store, invoice.NewBook(), 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Run(ctx)

	remotePK := ccrypto.PublicKey{7}
	_, err = srv.Submit(ctx, AddFriendRequest{RemotePK: remotePK, Name: "carol"}, FullPermissions())
	require.NoError(t, err)

	f, ok := fd.Friends[remotePK]
	require.True(t, ok)
	require.Equal(t, "carol", f.Name)

	var replayed []persist.Mutation
	require.NoError(t, store.ReplayMutations(0, func(seq uint64, m persist.Mutation) error {
		replayed = append(replayed, m)
		return nil
	}))
	require.Len(t, replayed, 1)
	add, ok := replayed[0].(*persist.AddFriendMutation)
	require.True(t, ok)
	require.Equal(t, remotePK, add.RemotePK)
}

func TestServerDisableFriendLogsStateMutation(t *testing.T) {
	fd, _ := newFunder(t)
	remotePK := ccrypto.PublicKey{3}
	fd.AddFriend(remotePK, "dan")

	store, err := persist.OpenBolt(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	srv := NewServer(fd, store, invoice.NewBook(), 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Run(ctx)

	_, err = srv.Submit(ctx, DisableFriendRequest{RemotePK: remotePK}, FullPermissions())
	require.NoError(t, err)
	require.Equal(t, friend.StatusDisabled, fd.Friends[remotePK].Status)

	var replayed []persist.Mutation
	require.NoError(t, store.ReplayMutations(0, func(seq uint64, m persist.Mutation) error {
		replayed = append(replayed, m)
		return nil
	}))
	require.Len(t, replayed, 1)
	state, ok := replayed[0].(*persist.SetFriendStateMutation)
	require.True(t, ok)
	require.True(t, state.Disabled)
}

func TestServerRequestClosePaymentUnknownInvoice(t *testing.T) {
	fd, _ := newFunder(t)
	store, err := persist.OpenBolt(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	srv := NewServer(fd, store, invoice.NewBook(), 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Run(ctx)

	_, err = srv.Submit(ctx, RequestClosePaymentRequest{InvoiceID: ccrypto.Sum512_256([]byte("nope"))}, FullPermissions())
	require.Error(t, err)
}

func TestServerCreatePayment(t *testing.T) {
	fd, _ := newFunder(t)
	store, err := persist.OpenBolt(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	srv := NewServer(fd, store, invoice.NewBook(), 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Run(ctx)

	invoiceID := ccrypto.Sum512_256([]byte("invoice-1"))
	_, err = srv.Submit(ctx, CreatePaymentRequest{
		InvoiceID:        invoiceID,
		Currency:         testCurrency,
		TotalDestPayment: big.NewInt(100),
	}, FullPermissions())
	require.NoError(t, err)

	p, ok := fd.Payments[invoiceID]
	require.True(t, ok)
	require.Equal(t, 0, p.TotalDestPayment.Cmp(big.NewInt(100)))
}
