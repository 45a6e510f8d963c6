package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"wallet-platform/internal/core/domain"
	"wallet-platform/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// errLockNotAvailable mimics PostgreSQL's FOR UPDATE NOWAIT failure so the
// services' contention handling can be exercised without a database.
func errLockNotAvailable() error {
	return &pgconn.PgError{Code: "55P03", Message: "could not obtain lock on row"}
}

// rowLocks hands out one mutex per row ID. TryLock stands in for NOWAIT:
// a held lock fails immediately instead of queueing.
type rowLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newRowLocks() *rowLocks {
	return &rowLocks{locks: make(map[uuid.UUID]*sync.Mutex)}
}

func (l *rowLocks) acquire(tx pgx.Tx, id uuid.UUID) error {
	l.mu.Lock()
	rowMu, ok := l.locks[id]
	if !ok {
		rowMu = &sync.Mutex{}
		l.locks[id] = rowMu
	}
	l.mu.Unlock()

	if !rowMu.TryLock() {
		return errLockNotAvailable()
	}
	mt, ok := tx.(*memTx)
	if !ok {
		rowMu.Unlock()
		return fmt.Errorf("row lock requires a memTx")
	}
	mt.onDone(rowMu.Unlock)
	return nil
}

// --- In-memory transactor ---

type memTransactor struct{}

func newMemTransactor() *memTransactor { return &memTransactor{} }

func (t *memTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return &memTx{}, nil
}

// memTx is a pgx.Tx stand-in that releases row locks when the transaction
// ends. Writes are applied immediately; rollback does not undo them, which
// is fine because the services only write after the point of no return.
type memTx struct {
	mu      sync.Mutex
	done    bool
	cleanup []func()
}

func (t *memTx) onDone(f func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cleanup = append(t.cleanup, f)
}

func (t *memTx) finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return
	}
	t.done = true
	for _, f := range t.cleanup {
		f()
	}
	t.cleanup = nil
}

func (t *memTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *memTx) Commit(ctx context.Context) error          { t.finish(); return nil }
func (t *memTx) Rollback(ctx context.Context) error        { t.finish(); return nil }
func (t *memTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *memTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *memTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *memTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *memTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *memTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *memTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *memTx) Conn() *pgx.Conn { return nil }

// --- In-memory user repo ---

type inMemoryUserRepo struct {
	mu    sync.RWMutex
	users map[uuid.UUID]domain.User
}

func newInMemoryUserRepo() *inMemoryUserRepo {
	return &inMemoryUserRepo{users: make(map[uuid.UUID]domain.User)}
}

func (r *inMemoryUserRepo) Create(ctx context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.PhoneNumber == u.PhoneNumber {
			return fmt.Errorf("phone number already exists")
		}
	}
	r.users[u.ID] = *u
	return nil
}

func (r *inMemoryUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *inMemoryUserRepo) GetByPhone(ctx context.Context, phoneNumber string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.PhoneNumber == phoneNumber {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

// --- In-memory wallet repo ---

type inMemoryWalletRepo struct {
	mu      sync.RWMutex
	wallets map[uuid.UUID]domain.Wallet
	locks   *rowLocks
}

func newInMemoryWalletRepo() *inMemoryWalletRepo {
	return &inMemoryWalletRepo{
		wallets: make(map[uuid.UUID]domain.Wallet),
		locks:   newRowLocks(),
	}
}

func (r *inMemoryWalletRepo) Create(ctx context.Context, w *domain.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wallets[w.ID] = *w
	return nil
}

func (r *inMemoryWalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.wallets[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (r *inMemoryWalletRepo) GetByUserID(ctx context.Context, userID uuid.UUID, currency domain.Currency) (*domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, w := range r.wallets {
		if w.UserID == userID && w.Currency == currency {
			w := w
			return &w, nil
		}
	}
	return nil, nil
}

func (r *inMemoryWalletRepo) GetByBusinessID(ctx context.Context, businessID uuid.UUID, currency domain.Currency) (*domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, w := range r.wallets {
		if w.BusinessID != nil && *w.BusinessID == businessID && w.Currency == currency {
			w := w
			return &w, nil
		}
	}
	return nil, nil
}

func (r *inMemoryWalletRepo) ListByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Wallet
	for _, w := range r.wallets {
		if w.UserID == userID {
			result = append(result, w)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Currency < result[j].Currency })
	return result, nil
}

func (r *inMemoryWalletRepo) ListByBusinessID(ctx context.Context, businessID uuid.UUID) ([]domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Wallet
	for _, w := range r.wallets {
		if w.BusinessID != nil && *w.BusinessID == businessID {
			result = append(result, w)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Currency < result[j].Currency })
	return result, nil
}

func (r *inMemoryWalletRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	if err := r.locks.acquire(tx, id); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *inMemoryWalletRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[walletID]
	if !ok {
		return fmt.Errorf("wallet not found")
	}
	w.Balance = balance
	r.wallets[walletID] = w
	return nil
}

func (r *inMemoryWalletRepo) UpdateLimit(ctx context.Context, walletID uuid.UUID, limit decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[walletID]
	if !ok {
		return fmt.Errorf("wallet not found")
	}
	w.Limit = limit
	r.wallets[walletID] = w
	return nil
}

// --- In-memory wallet transaction repo (ledger entries) ---

type inMemoryWalletTxnRepo struct {
	mu      sync.RWMutex
	entries []domain.WalletTransaction
}

func newInMemoryWalletTxnRepo() *inMemoryWalletTxnRepo {
	return &inMemoryWalletTxnRepo{}
}

func (r *inMemoryWalletTxnRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.WalletTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *e)
	return nil
}

func (r *inMemoryWalletTxnRepo) ListByWallet(ctx context.Context, walletID uuid.UUID, page, pageSize int) ([]domain.WalletTransaction, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.WalletTransaction
	for _, e := range r.entries {
		if e.WalletID == walletID {
			result = append(result, e)
		}
	}
	total := int64(len(result))
	start := (page - 1) * pageSize
	if start >= len(result) {
		return nil, total, nil
	}
	end := start + pageSize
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], total, nil
}

// --- In-memory gateway repo ---

type inMemoryGatewayRepo struct {
	mu       sync.RWMutex
	gateways map[uuid.UUID]domain.Gateway
}

func newInMemoryGatewayRepo() *inMemoryGatewayRepo {
	return &inMemoryGatewayRepo{gateways: make(map[uuid.UUID]domain.Gateway)}
}

func (r *inMemoryGatewayRepo) Create(ctx context.Context, gw *domain.Gateway) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gateways[gw.ID] = *gw
	return nil
}

func (r *inMemoryGatewayRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Gateway, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	gw, ok := r.gateways[id]
	if !ok {
		return nil, nil
	}
	return &gw, nil
}

func (r *inMemoryGatewayRepo) GetActiveByCurrency(ctx context.Context, currency domain.Currency) (*domain.Gateway, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var candidates []domain.Gateway
	for _, gw := range r.gateways {
		if gw.IsActive && gw.Currency == currency {
			candidates = append(candidates, gw)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return candidates[i].ID.String() < candidates[j].ID.String()
	})
	return &candidates[0], nil
}

func (r *inMemoryGatewayRepo) List(ctx context.Context, page, pageSize int) ([]domain.Gateway, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Gateway
	for _, gw := range r.gateways {
		result = append(result, gw)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Priority > result[j].Priority })
	return result, int64(len(result)), nil
}

func (r *inMemoryGatewayRepo) Update(ctx context.Context, gw *domain.Gateway) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.gateways[gw.ID]; !ok {
		return fmt.Errorf("gateway not found")
	}
	r.gateways[gw.ID] = *gw
	return nil
}

func (r *inMemoryGatewayRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.gateways[id]; !ok {
		return fmt.Errorf("gateway not found")
	}
	delete(r.gateways, id)
	return nil
}

// --- In-memory gateway transaction repo ---

type inMemoryGatewayTxnRepo struct {
	mu    sync.RWMutex
	txns  map[uuid.UUID]domain.GatewayTransaction
	locks *rowLocks
}

func newInMemoryGatewayTxnRepo() *inMemoryGatewayTxnRepo {
	return &inMemoryGatewayTxnRepo{
		txns:  make(map[uuid.UUID]domain.GatewayTransaction),
		locks: newRowLocks(),
	}
}

func (r *inMemoryGatewayTxnRepo) Create(ctx context.Context, t *domain.GatewayTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txns[t.ID] = *t
	return nil
}

func (r *inMemoryGatewayTxnRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.GatewayTransaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.txns[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (r *inMemoryGatewayTxnRepo) GetByIDAndToken(ctx context.Context, id uuid.UUID, token string) (*domain.GatewayTransaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.txns[id]
	if !ok || t.Token == nil || *t.Token != token {
		return nil, nil
	}
	return &t, nil
}

func (r *inMemoryGatewayTxnRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.GatewayTransaction, error) {
	if err := r.locks.acquire(tx, id); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *inMemoryGatewayTxnRepo) SetToken(ctx context.Context, id uuid.UUID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.txns[id]
	if !ok {
		return fmt.Errorf("gateway transaction not found")
	}
	t.Token = &token
	r.txns[id] = t
	return nil
}

func (r *inMemoryGatewayTxnRepo) Finalize(ctx context.Context, tx pgx.Tx, t *domain.GatewayTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.txns[t.ID]; !ok {
		return fmt.Errorf("gateway transaction not found")
	}
	r.txns[t.ID] = *t
	return nil
}

func (r *inMemoryGatewayTxnRepo) List(ctx context.Context, params ports.GatewayTransactionListParams) ([]domain.GatewayTransaction, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.GatewayTransaction
	for _, t := range r.txns {
		if params.UserID != nil && t.UserID != *params.UserID {
			continue
		}
		if params.GatewayID != nil && t.GatewayID != *params.GatewayID {
			continue
		}
		if params.WalletID != nil && (t.WalletID == nil || *t.WalletID != *params.WalletID) {
			continue
		}
		if params.Status != nil && t.Status != *params.Status {
			continue
		}
		if params.Currency != nil && t.Currency != *params.Currency {
			continue
		}
		result = append(result, t)
	}
	total := int64(len(result))
	start := (params.Page - 1) * params.PageSize
	if start >= len(result) {
		return nil, total, nil
	}
	end := start + params.PageSize
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], total, nil
}
