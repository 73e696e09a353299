package sqlinline

const QQueueListPending = `--sql a60b3643-163d-4fd6-b47f-26355c3dd033
select id::text, url, name, source, status, note, created_at, updated_at
from work_items
where status = 'pending'
order by created_at asc, id asc
limit nullif($1::int, 0);
`

const QQueueSetStatus = `--sql f6242936-f59d-4b2a-9987-0c015b73614c
update work_items
set status = $2, note = $3, updated_at = now()
where id = $1::uuid;
`

const QQueueEnqueue = `--sql d4786d15-3404-414c-a6d1-0c1c0c18c288
insert into work_items (url, name, source, status)
values ($1, $2, $3, 'pending')
returning id::text;
`

// QQueueReset moves error items ($1) and in_progress items idle for more
// than $2 seconds back to pending, optionally for one source ($3).
const QQueueReset = `--sql d478dc8a-a8fe-4f51-a407-5e4696f95939
update work_items
set status = 'pending', updated_at = now()
where (
        ($1::bool and status = 'error')
     or ($2::float8 > 0 and status = 'in_progress'
         and updated_at < now() - make_interval(secs => $2::float8))
  )
  and ($3::text = '' or source = $3::text);
`

const QQueueCountByStatus = `--sql d47b9ac3-640b-4b37-a17a-e621a1df5a4e
select status, count(*)::int
from work_items
group by status;
`
