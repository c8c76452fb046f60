package storage

import (
	"fmt"
	"sync"

	"github.com/vexecdb/vexec/pkg/util"
)

type TxnType uint64

const (
	TxnIdStart TxnType = 4611686018427388000
	MaxTxnId   TxnType = TxnIdStart*2 - 1
)

type Txn struct {
	_txnMgr    *TxnMgr
	_name      string
	_startTime TxnType
	_id        TxnType
	_commitId  TxnType
}

func (txn *Txn) Name() string {
	return txn._name
}

type TxnMgr struct {
	_curStartTs TxnType
	_curTxnId   TxnType
	_activeTxns []*Txn
	_lock       sync.Locker
}

func NewTxnMgr() *TxnMgr {
	return &TxnMgr{
		_curStartTs: 2,
		_curTxnId:   TxnIdStart,
		_lock:       util.NewReentryLock(),
	}
}

func (txnMgr *TxnMgr) NewTxn(name string) (*Txn, error) {
	txnMgr._lock.Lock()
	defer txnMgr._lock.Unlock()
	if txnMgr._curStartTs >= TxnIdStart {
		return nil, fmt.Errorf("invalid txn id")
	}
	startTime := txnMgr._curStartTs
	txnMgr._curStartTs++
	txnId := txnMgr._curTxnId
	txnMgr._curTxnId++
	txn := &Txn{
		_txnMgr:    txnMgr,
		_name:      name,
		_startTime: startTime,
		_id:        txnId,
	}
	txnMgr._activeTxns = append(txnMgr._activeTxns, txn)
	return txn, nil
}

func (txnMgr *TxnMgr) removeTxn(txn *Txn) {
	for i, act := range txnMgr._activeTxns {
		if act == txn {
			txnMgr._activeTxns = append(txnMgr._activeTxns[:i], txnMgr._activeTxns[i+1:]...)
			break
		}
	}
}

func (txnMgr *TxnMgr) Commit(txn *Txn) error {
	txnMgr._lock.Lock()
	defer txnMgr._lock.Unlock()
	txn._commitId = txnMgr._curStartTs
	txnMgr._curStartTs++
	txnMgr.removeTxn(txn)
	return nil
}

func (txnMgr *TxnMgr) Rollback(txn *Txn) {
	txnMgr._lock.Lock()
	defer txnMgr._lock.Unlock()
	txnMgr.removeTxn(txn)
}

var GTxnMgr = NewTxnMgr()
