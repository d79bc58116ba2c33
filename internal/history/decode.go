package history

import (
	"evm-token-lab/internal/abi"
	"evm-token-lab/internal/domain"
	"evm-token-lab/internal/eth"
)

// decodeTransfers extracts the balance movements one mined transaction
// caused. Reverted transactions move nothing; approvals change state
// but move nothing either.
func decodeTransfers(token domain.Address, block *eth.Block, tx *eth.BlockTx, receipt *eth.Receipt) []*domain.TransferRecord {
	if receipt.Status != domain.ReceiptStatusSuccess || tx.To == nil {
		return nil
	}
	minedAt := int64(block.Time) * 1000

	if *tx.To != token {
		if tx.Value.IsZero() {
			return nil
		}
		return []*domain.TransferRecord{{
			TxHash:      tx.Hash,
			BlockNumber: block.Number,
			TxIndex:     tx.Index,
			Kind:        domain.TransferKindNative,
			From:        tx.From,
			To:          *tx.To,
			Amount:      tx.Value,
			MinedAt:     minedAt,
		}}
	}

	sel, args, err := abi.Split(tx.Input)
	if err != nil {
		return nil
	}

	switch sel {
	case abi.MethodTransfer.Selector:
		to, amount, err := unpackAddressAmount(args)
		if err != nil {
			return nil
		}
		return []*domain.TransferRecord{{
			TxHash:      tx.Hash,
			BlockNumber: block.Number,
			TxIndex:     tx.Index,
			Kind:        domain.TransferKindToken,
			From:        tx.From,
			To:          to,
			Amount:      amount,
			MinedAt:     minedAt,
		}}

	case abi.MethodTransferFrom.Selector:
		owner, to, amount, err := unpackOwnerToAmount(args)
		if err != nil {
			return nil
		}
		spender := tx.From
		return []*domain.TransferRecord{{
			TxHash:      tx.Hash,
			BlockNumber: block.Number,
			TxIndex:     tx.Index,
			Kind:        domain.TransferKindDelegated,
			From:        owner,
			To:          to,
			Spender:     &spender,
			Amount:      amount,
			MinedAt:     minedAt,
		}}
	}
	return nil
}

// aggregateVolume folds a block's transfers into one analytics point.
func aggregateVolume(block *eth.Block, records []*domain.TransferRecord) *domain.VolumePoint {
	point := &domain.VolumePoint{
		BlockNumber: block.Number,
		MinedAt:     int64(block.Time) * 1000,
	}
	for _, record := range records {
		point.TransferCount++
		switch record.Kind {
		case domain.TransferKindNative:
			if sum, ok := point.NativeVolume.Add(record.Amount); ok {
				point.NativeVolume = sum
			}
		default:
			if sum, ok := point.TokenVolume.Add(record.Amount); ok {
				point.TokenVolume = sum
			}
		}
	}
	return point
}

func unpackAddressAmount(args []byte) (domain.Address, domain.Amount, error) {
	addrWord, err := abi.ArgWord(args, 0)
	if err != nil {
		return domain.Address{}, domain.Amount{}, err
	}
	addr, err := abi.WordAddress(addrWord)
	if err != nil {
		return domain.Address{}, domain.Amount{}, err
	}
	amountWord, err := abi.ArgWord(args, 1)
	if err != nil {
		return domain.Address{}, domain.Amount{}, err
	}
	return addr, abi.WordAmount(amountWord), nil
}

func unpackOwnerToAmount(args []byte) (owner, to domain.Address, amount domain.Amount, err error) {
	ownerWord, err := abi.ArgWord(args, 0)
	if err != nil {
		return
	}
	if owner, err = abi.WordAddress(ownerWord); err != nil {
		return
	}
	toWord, err := abi.ArgWord(args, 1)
	if err != nil {
		return
	}
	if to, err = abi.WordAddress(toWord); err != nil {
		return
	}
	amountWord, err := abi.ArgWord(args, 2)
	if err != nil {
		return
	}
	amount = abi.WordAmount(amountWord)
	return
}
