package sqlinline

// QEnqueueJob inserts a queue envelope unless the order already has a live
// job, making enqueue idempotent per order. The partial unique index backs
// the not-exists check under concurrent enqueues; a conflicting insert
// returns no row, the same shape as the not-exists miss.
const QEnqueueJob = `--sql 20c6e8d5-7a4f-4b91-8e32-d05c71f9a6b4
insert into jobs (id, order_id, payload, status, priority, attempts, max_attempts, progress, next_run_at, created_at, updated_at)
select $1::uuid, $2::text, $3::jsonb, 'queued', $4::int, 0, $5::int, 0, now(), now(), now()
where not exists (
    select 1 from jobs
    where order_id = $2::text
      and status in ('queued', 'running')
)
on conflict (order_id) where status in ('queued', 'running') do nothing
returning id;
`

// QClaimJob hands one runnable job to a worker. Jobs whose lease expired
// (worker crashed mid-flight) become claimable again after the visibility
// timeout.
const QClaimJob = `--sql 4b90f2c7-e185-4d36-a740-69c8d53e0f1a
with next_job as (
    select id
    from jobs
    where (status = 'queued' and next_run_at <= now())
       or (status = 'running' and claimed_at < now() - make_interval(secs => $1::int))
    order by priority desc, created_at asc
    for update skip locked
    limit 1
),
claimed as (
    update jobs
    set status = 'running', claimed_at = now(), attempts = attempts + 1, updated_at = now()
    where id in (select id from next_job)
    returning id, order_id, payload, attempts, max_attempts
)
select id, order_id, payload, attempts, max_attempts from claimed;
`

const QAckJob = `--sql 9f35a7d0-48c2-4e61-b9d5-07e1f82c64a3
update jobs
set status = 'done', claimed_at = null, updated_at = now()
where id = $1::uuid;
`

// QNackJob requeues with a delay, or moves the job to the dead set once all
// attempts are spent.
const QNackJob = `--sql 7e82b4f1-c06d-4a95-83e7-f21d60c958ab
update jobs
set status = case when attempts >= max_attempts then 'dead' else 'queued' end,
    next_run_at = now() + make_interval(secs => $3::int),
    last_error = $2::text,
    claimed_at = null,
    updated_at = now()
where id = $1::uuid
returning status;
`

// QFailJobTerminal retires a job whose failure is definitive (backend-reported
// generation failure); no retry applies.
const QFailJobTerminal = `--sql 31d7c9e4-6f50-4b28-a1c6-84e09d3f75b2
update jobs
set status = 'failed', last_error = $2::text, claimed_at = null, updated_at = now()
where id = $1::uuid;
`

const QUpdateJobProgress = `--sql cd49e1b6-803a-4f57-92e8-5b6f0a27d381
update jobs
set progress = $2::int, updated_at = now()
where id = $1::uuid;
`

const QSelectJobByOrder = `--sql 86f03b2d-47e9-4c50-bd16-29a8c7e5f043
select id, order_id, payload, status, priority, attempts, max_attempts,
       next_run_at, claimed_at, coalesce(last_error, ''), created_at, updated_at
from jobs
where order_id = $1::text
order by created_at desc
limit 1;
`
