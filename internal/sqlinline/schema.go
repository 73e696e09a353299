package sqlinline

// QSchemaPostgres creates the queue and catalog tables (PostgreSQL 13+ for
// gen_random_uuid).
const QSchemaPostgres = `--sql caeabce1-8537-4b24-ab05-33f9baad5f83
create table if not exists work_items (
    id          uuid primary key default gen_random_uuid(),
    url         text not null,
    name        text not null default '',
    source      text not null,
    status      text not null default 'pending'
                check (status in ('pending', 'in_progress', 'done', 'error')),
    note        text not null default '',
    created_at  timestamptz not null default now(),
    updated_at  timestamptz not null default now()
);

create index if not exists work_items_status_created_idx
    on work_items (status, created_at);

create table if not exists lures (
    id           bigserial primary key,
    source       text not null,
    slug         text not null,
    name         text not null,
    name_kana    text not null default '',
    lure_type    text not null default '',
    target_fish  text[] not null default '{}',
    description  text not null default '',
    price        integer not null default 0 check (price >= 0),
    color_name   text not null,
    weight_g     double precision,
    length_mm    double precision,
    image_url    text,
    source_url   text not null default '',
    created_at   timestamptz not null default now()
);

create unique index if not exists lures_dedup_idx
    on lures (source, slug, color_name, (coalesce(weight_g, -1)));
`
