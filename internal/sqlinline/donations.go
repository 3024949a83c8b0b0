package sqlinline

// PostgreSQL dialect. Amounts are numeric(14,2) and read back as text so the
// decimal value survives the round trip unchanged. seq records first
// insertion order and is the top-donor tie-break.

const QPGCreateDonations = `--sql e5afa8fb-a7ca-4e30-85bf-2dc56deb2ca6
create table if not exists donations (
  id text primary key,
  seq bigint generated always as identity,
  name text not null,
  amount numeric(14,2) not null,
  description text not null default '',
  comment text not null default '',
  counter_name text not null default '',
  timestamp_ms bigint not null,
  created_at timestamptz not null default now(),
  updated_at timestamptz not null default now()
);
`

const QPGIndexDonationsTimestamp = `--sql b158594e-4a58-4d0a-b82d-008f9f033335
create index if not exists idx_donations_timestamp on donations (timestamp_ms desc);
`

const QPGIndexDonationsName = `--sql f0b6369f-c1fe-44f0-a557-4a6e23a614ce
create index if not exists idx_donations_name on donations (name);
`

const QPGUpsertDonation = `--sql 0d9f278b-c402-4ee9-879d-c2346fd1343e
insert into donations (id, name, amount, description, comment, counter_name, timestamp_ms)
values ($1::text, $2::text, $3::numeric, $4::text, $5::text, $6::text, $7::bigint)
on conflict (id) do update set
  name = excluded.name,
  amount = excluded.amount,
  description = excluded.description,
  comment = excluded.comment,
  counter_name = excluded.counter_name,
  timestamp_ms = excluded.timestamp_ms,
  updated_at = now();
`

const QPGListDonations = `--sql 3ecbf05c-4d9f-4b73-9601-f142664b9913
select id, name, amount::text, description, comment, counter_name, timestamp_ms
from donations
order by timestamp_ms desc, seq desc
limit $1::int offset $2::int;
`

const QPGDonationTotals = `--sql 88f44530-0fd9-4ea1-b496-684ae8d8418d
select coalesce(sum(amount), 0)::text, count(*), count(distinct name)
from donations;
`

const QPGLatestDonation = `--sql 7cf4f1e7-cafa-4ba6-9499-592ad998a2c1
select id, name, amount::text, description, comment, counter_name, timestamp_ms
from donations
order by timestamp_ms desc, seq desc
limit 1;
`

const QPGTopDonors = `--sql 2ee827e4-bf83-4bbd-b9d0-b4e2b439b5de
select name, sum(amount)::text as total
from donations
group by name
order by sum(amount) desc, min(seq) asc, name asc
limit $1::int;
`

// SQLite dialect. Amounts are stored as integer minor units; rowid gives the
// first-insertion order because upserts update rows in place.

const QLiteCreateDonations = `--sql 9095a541-2b51-4e93-a918-e8f158aeeccc
CREATE TABLE IF NOT EXISTS donations (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  amount_minor INTEGER NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  comment TEXT NOT NULL DEFAULT '',
  counter_name TEXT NOT NULL DEFAULT '',
  timestamp_ms INTEGER NOT NULL,
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

const QLiteIndexDonationsTimestamp = `--sql 3ddda76b-ea8d-4ef7-9031-881c786415d7
CREATE INDEX IF NOT EXISTS idx_donations_timestamp ON donations(timestamp_ms);
`

const QLiteIndexDonationsName = `--sql e1d3d9f1-4165-4889-8fe2-40a8c6b6648d
CREATE INDEX IF NOT EXISTS idx_donations_name ON donations(name);
`

const QLiteUpsertDonation = `--sql e7cdcf07-8922-41ff-8770-96e45ae79fbb
INSERT INTO donations (id, name, amount_minor, description, comment, counter_name, timestamp_ms)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  name = excluded.name,
  amount_minor = excluded.amount_minor,
  description = excluded.description,
  comment = excluded.comment,
  counter_name = excluded.counter_name,
  timestamp_ms = excluded.timestamp_ms,
  updated_at = CURRENT_TIMESTAMP;
`

const QLiteListDonations = `--sql 25648137-e050-4759-86a6-a4e791f32c8a
SELECT id, name, amount_minor, description, comment, counter_name, timestamp_ms
FROM donations
ORDER BY timestamp_ms DESC, rowid DESC
LIMIT ? OFFSET ?;
`

const QLiteDonationTotals = `--sql 7371790c-3eb1-4c7e-8cec-7d83fffb89b2
SELECT COALESCE(SUM(amount_minor), 0), COUNT(*), COUNT(DISTINCT name)
FROM donations;
`

const QLiteLatestDonation = `--sql 6cd480f6-7b70-41a5-989a-f2ff132d9f84
SELECT id, name, amount_minor, description, comment, counter_name, timestamp_ms
FROM donations
ORDER BY timestamp_ms DESC, rowid DESC
LIMIT 1;
`

const QLiteTopDonors = `--sql 3e8a085d-96f8-4812-97bc-9f55bf92655b
SELECT name, SUM(amount_minor) AS total
FROM donations
GROUP BY name
ORDER BY total DESC, MIN(rowid) ASC, name ASC
LIMIT ?;
`

// PGSchema and LiteSchema are applied in order at store initialization.
var (
	PGSchema   = []string{QPGCreateDonations, QPGIndexDonationsTimestamp, QPGIndexDonationsName}
	LiteSchema = []string{QLiteCreateDonations, QLiteIndexDonationsTimestamp, QLiteIndexDonationsName}
)
