package sqlinline

// SQLite flavours of the queue and catalog statements. Timestamps are bound
// from Go in UTC so text comparison orders them.

const QLiteSchema = `--sql d2561e4a-a708-4a0e-beca-d3ed38ef9e52
create table if not exists work_items (
    id          text primary key,
    url         text not null,
    name        text not null default '',
    source      text not null,
    status      text not null default 'pending'
                check (status in ('pending', 'in_progress', 'done', 'error')),
    note        text not null default '',
    created_at  datetime not null,
    updated_at  datetime not null
);
create index if not exists work_items_status_created_idx on work_items (status, created_at);

create table if not exists lures (
    id           integer primary key autoincrement,
    source       text not null,
    slug         text not null,
    name         text not null,
    name_kana    text not null default '',
    lure_type    text not null default '',
    target_fish  text not null default '[]',
    description  text not null default '',
    price        integer not null default 0 check (price >= 0),
    color_name   text not null,
    weight_g     real,
    length_mm    real,
    image_url    text,
    source_url   text not null default '',
    created_at   datetime not null
);
create unique index if not exists lures_dedup_idx
    on lures (source, slug, color_name, coalesce(weight_g, -1));
`

const QLiteListPending = `--sql 3f9ac0d9-4e01-4f71-867a-6b16f9243771
select id, url, name, source, status, note, created_at, updated_at
from work_items
where status = 'pending'
order by created_at asc, rowid asc
limit case when ? > 0 then ? else -1 end;
`

const QLiteSetStatus = `--sql 9c9f21f3-7f6e-46af-83d5-bff7bdea844b
update work_items set status = ?, note = ?, updated_at = ? where id = ?;
`

const QLiteEnqueue = `--sql 1cf47a5c-d484-43e3-a7fe-85c1aa221dc6
insert into work_items (id, url, name, source, status, note, created_at, updated_at)
values (?, ?, ?, ?, 'pending', '', ?, ?);
`

const QLiteReset = `--sql 08872625-77f1-4c5a-8f7b-1647d5d92550
update work_items
set status = 'pending', updated_at = ?
where ((? and status = 'error') or (? and status = 'in_progress' and updated_at < ?))
  and (? = '' or source = ?);
`

const QLiteCountByStatus = `--sql e846c589-84bf-4853-a05d-b0adfea3e420
select status, count(*) from work_items group by status;
`

const QLiteCatalogExists = `--sql 1e020904-88bf-4bef-a997-0206a95ea619
select exists (
    select 1 from lures
    where source = ? and slug = ? and color_name = ? and weight_g is ?
);
`

const QLiteCatalogInsert = `--sql a264d95d-24cf-4556-a7f9-4c0e8835b968
insert into lures (
    source, slug, name, name_kana, lure_type, target_fish, description,
    price, color_name, weight_g, length_mm, image_url, source_url, created_at
)
values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, nullif(?, ''), ?, ?)
on conflict (source, slug, color_name, coalesce(weight_g, -1)) do nothing;
`
