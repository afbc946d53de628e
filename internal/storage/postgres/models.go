package postgres

// transactionRow is the transactions table. Seq is the log order.
type transactionRow struct {
	Seq         int64  `gorm:"primaryKey;autoIncrement"`
	ID          string `gorm:"column:id;size:64;uniqueIndex;not null"`
	GroupID     string `gorm:"size:64;index:idx_transactions_group_seq,priority:1;not null"`
	Amount      int64  `gorm:"not null;check:chk_transactions_amount,amount > 0"`
	PayerID     string `gorm:"size:64;not null"`
	CreatorID   string `gorm:"size:64;not null"`
	Kind        string `gorm:"size:16;not null"`
	Description string `gorm:"size:512"`
	CreatedAt   int64  `gorm:"autoCreateTime:false;not null"`
	DeletedAt   int64  `gorm:"not null;default:0"`

	Splits []splitRow `gorm:"foreignKey:TxnID;references:ID;constraint:OnDelete:CASCADE"`
}

func (transactionRow) TableName() string { return "transactions" }

type splitRow struct {
	TxnID    string `gorm:"primaryKey;size:64"`
	Position int    `gorm:"primaryKey;autoIncrement:false"`
	UserID   string `gorm:"size:64;not null"`
	Amount   int64  `gorm:"not null"`
}

func (splitRow) TableName() string { return "transaction_splits" }

// balanceRow is one canonical pair. UserA < UserB; Amount reads "UserA owes UserB".
type balanceRow struct {
	GroupID string `gorm:"primaryKey;size:64"`
	UserA   string `gorm:"primaryKey;size:64"`
	UserB   string `gorm:"primaryKey;size:64"`
	Amount  int64  `gorm:"not null"`
}

func (balanceRow) TableName() string { return "balances" }

type userRow struct {
	ID          string `gorm:"primaryKey;size:64"`
	DisplayName string `gorm:"size:255;not null"`
	Email       string `gorm:"size:255"`
	CreatedAt   int64  `gorm:"autoCreateTime:false;not null"`
}

func (userRow) TableName() string { return "users" }

type groupRow struct {
	ID        string `gorm:"primaryKey;size:64"`
	Name      string `gorm:"size:255;not null"`
	CreatedAt int64  `gorm:"autoCreateTime:false;not null"`
}

func (groupRow) TableName() string { return "groups" }

// memberRow keeps departed members with LeftAt set.
type memberRow struct {
	GroupID  string `gorm:"primaryKey;size:64"`
	UserID   string `gorm:"primaryKey;size:64;index"`
	JoinedAt int64  `gorm:"not null"`
	LeftAt   *int64
	Group    groupRow `gorm:"foreignKey:GroupID;references:ID;constraint:OnDelete:CASCADE"`
	User     userRow  `gorm:"foreignKey:UserID;references:ID"`
}

func (memberRow) TableName() string { return "group_members" }
