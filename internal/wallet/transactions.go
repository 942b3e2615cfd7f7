package wallet

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/mr-tron/base58"
	"github.com/rs/zerolog"

	"github.com/lumenvault/svm/internal/logger"
	"github.com/lumenvault/svm/internal/rpc"
	"github.com/lumenvault/svm/internal/types"
)

var (
	ErrSimulationFailed = errors.New("transaction simulation failed")
	ErrSubmitExhausted  = errors.New("transaction submission retries exhausted")
	ErrConfirmTimeout   = errors.New("transaction confirmation timed out")
	ErrEmptyBatch       = errors.New("transaction batch has no instructions")
)

const confirmPollInterval = 2 * time.Second

// Submitter executes one instruction batch end to end. Seam for the engine;
// tests use a fake.
type Submitter interface {
	Submit(ctx context.Context, batch types.TransactionBatch) (types.TransactionResult, error)
}

// Builder assembles, prices, signs and lands transactions over the failover
// RPC pair.
type Builder struct {
	signer         *Signer
	fo             *rpc.Failover
	marginPct      uint64
	maxRetries     int
	confirmTimeout time.Duration
	log            zerolog.Logger
}

func NewBuilder(signer *Signer, fo *rpc.Failover, marginPct uint64, maxRetries int, confirmTimeout time.Duration) *Builder {
	return &Builder{
		signer:         signer,
		fo:             fo,
		marginPct:      marginPct,
		maxRetries:     maxRetries,
		confirmTimeout: confirmTimeout,
		log:            logger.GetForComponent("wallet"),
	}
}

// Submit simulates the batch for a compute budget, prices priority fees at
// the recent median, signs and sends with bounded retries, then blocks until
// the signature confirms or the confirmation window closes.
func (b *Builder) Submit(ctx context.Context, batch types.TransactionBatch) (types.TransactionResult, error) {
	if len(batch.Instructions) == 0 {
		return types.TransactionResult{}, ErrEmptyBatch
	}

	var blockhash string
	err := b.fo.Do(ctx, func(c *rpc.Client) error {
		var err error
		blockhash, err = c.GetLatestBlockhash(ctx)
		return err
	})
	if err != nil {
		return types.TransactionResult{}, fmt.Errorf("fetching blockhash: %w", err)
	}

	unsigned := b.serialize(batch, blockhash, nil)

	var unitsConsumed uint64
	err = b.fo.Do(ctx, func(c *rpc.Client) error {
		var err error
		unitsConsumed, err = c.SimulateTransaction(ctx, base64.StdEncoding.EncodeToString(unsigned))
		return err
	})
	if err != nil {
		return types.TransactionResult{}, fmt.Errorf("%w: %w", ErrSimulationFailed, err)
	}

	computeBudget := unitsConsumed * (100 + b.marginPct) / 100
	priorityFee, err := b.medianPriorityFee(ctx, batch)
	if err != nil {
		b.log.Warn().Err(err).Msg("Priority fee lookup failed, submitting without priority")
		priorityFee = 0
	}

	message := b.serialize(batch, blockhash, &budget{units: computeBudget, fee: priorityFee})
	signature := b.signer.Sign(message)
	wire := base64.StdEncoding.EncodeToString(append(signature, message...))

	b.log.Debug().
		Uint64("computeBudget", computeBudget).
		Uint64("priorityFee", priorityFee).
		Int("instructions", len(batch.Instructions)).
		Msg("Submitting transaction")

	result := types.TransactionResult{
		ComputeUnits: computeBudget,
		PriorityFee:  priorityFee,
	}

	var sig string
	for attempt := 0; attempt < b.maxRetries; attempt++ {
		if attempt > 0 {
			result.SubmitRetries++
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
		err = b.fo.Do(ctx, func(c *rpc.Client) error {
			var err error
			sig, err = c.SendTransaction(ctx, wire)
			return err
		})
		if err == nil {
			break
		}
		b.log.Warn().Err(err).Int("attempt", attempt+1).Msg("Send failed")
	}
	if err != nil {
		return result, fmt.Errorf("%w: %w", ErrSubmitExhausted, err)
	}
	result.Signature = sig

	start := time.Now()
	if err := b.awaitConfirmation(ctx, sig); err != nil {
		return result, err
	}
	result.Confirmed = true
	result.ConfirmSecs = time.Since(start).Seconds()

	b.log.Info().
		Str("signature", sig).
		Float64("confirmSecs", result.ConfirmSecs).
		Msg("Transaction confirmed")
	return result, nil
}

// medianPriorityFee samples recent prioritization fees over the accounts the
// batch writes to and takes the median.
func (b *Builder) medianPriorityFee(ctx context.Context, batch types.TransactionBatch) (uint64, error) {
	accounts := writableAccounts(batch)

	var fees []rpc.PrioritizationFee
	err := b.fo.Do(ctx, func(c *rpc.Client) error {
		var err error
		fees, err = c.GetRecentPrioritizationFees(ctx, accounts)
		return err
	})
	if err != nil {
		return 0, err
	}
	if len(fees) == 0 {
		return 0, nil
	}

	vals := make([]uint64, len(fees))
	for i, f := range fees {
		vals[i] = f.PrioritizationFee
	}
	sort.Slice(vals, func(i, j int) bool { return vals[i] < vals[j] })
	return vals[len(vals)/2], nil
}

// awaitConfirmation polls signature status until the transaction confirms,
// errs on chain, or the window closes.
func (b *Builder) awaitConfirmation(ctx context.Context, signature string) error {
	deadline := time.Now().Add(b.confirmTimeout)
	ticker := time.NewTicker(confirmPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s", ErrConfirmTimeout, signature)
		}

		var statuses []*rpc.SignatureStatus
		err := b.fo.Do(ctx, func(c *rpc.Client) error {
			var err error
			statuses, err = c.GetSignatureStatuses(ctx, []string{signature})
			return err
		})
		if err != nil {
			b.log.Warn().Err(err).Msg("Status poll failed")
			continue
		}
		if len(statuses) == 0 || statuses[0] == nil {
			continue
		}
		st := statuses[0]
		if st.Err != nil {
			return fmt.Errorf("transaction failed on chain: %v", st.Err)
		}
		if st.ConfirmationStatus == "confirmed" || st.ConfirmationStatus == "finalized" {
			return nil
		}
	}
}

type budget struct {
	units uint64
	fee   uint64
}

// serialize produces the wire message: header, blockhash, optional compute
// budget, then each instruction.
func (b *Builder) serialize(batch types.TransactionBatch, blockhash string, bud *budget) []byte {
	var buf []byte
	buf = append(buf, 0x01) // message version

	hash, err := base58.Decode(blockhash)
	if err != nil {
		hash = []byte(blockhash)
	}
	buf = appendBytes(buf, hash)

	pub, _ := base58.Decode(b.signer.PublicKey())
	buf = appendBytes(buf, pub)

	if bud != nil {
		buf = append(buf, 0x01)
		buf = binary.LittleEndian.AppendUint64(buf, bud.units)
		buf = binary.LittleEndian.AppendUint64(buf, bud.fee)
	} else {
		buf = append(buf, 0x00)
	}

	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(batch.LookupAccounts)))
	for _, la := range batch.LookupAccounts {
		buf = appendBytes(buf, []byte(la))
	}

	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(batch.Instructions)))
	for _, ix := range batch.Instructions {
		buf = appendBytes(buf, []byte(ix.ProgramID))
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(ix.Accounts)))
		for _, acc := range ix.Accounts {
			buf = appendBytes(buf, []byte(acc.Address))
			var flags byte
			if acc.IsSigner {
				flags |= 0x01
			}
			if acc.IsWritable {
				flags |= 0x02
			}
			buf = append(buf, flags)
		}
		buf = appendBytes(buf, ix.Data)
	}
	return buf
}

func appendBytes(buf, b []byte) []byte {
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(b)))
	return append(buf, b...)
}

func writableAccounts(batch types.TransactionBatch) []string {
	seen := make(map[string]bool)
	var out []string
	for _, ix := range batch.Instructions {
		for _, acc := range ix.Accounts {
			if acc.IsWritable && !seen[acc.Address] {
				seen[acc.Address] = true
				out = append(out, acc.Address)
			}
		}
	}
	return out
}
