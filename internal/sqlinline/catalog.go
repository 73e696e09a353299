package sqlinline

const QCatalogExists = `--sql fb99a93e-22a2-43f4-9c74-dfd912e11a5e
select exists (
    select 1
    from lures
    where source = $1
      and slug = $2
      and color_name = $3
      and weight_g is not distinct from $4
);
`

// QCatalogInsert is insert-or-ignore on the dedup index; zero rows affected
// means the key already existed.
const QCatalogInsert = `--sql 25ef3f07-319d-46a2-91f9-caa74b91fbf5
insert into lures (
    source, slug, name, name_kana, lure_type, target_fish, description,
    price, color_name, weight_g, length_mm, image_url, source_url
)
values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, nullif($12, ''), $13)
on conflict (source, slug, color_name, (coalesce(weight_g, -1))) do nothing;
`
