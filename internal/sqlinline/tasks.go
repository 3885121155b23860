package sqlinline

// QInsertTask relies on the partial unique index on order_id for non-terminal
// tasks, so a second submission for an order with an active task is a no-op.
const QInsertTask = `--sql c80d4f26-1b93-4e57-a2d0-69f5b31e07c8
insert into generation_tasks (id, order_id, external_task_id, status, progress, created_at, updated_at)
values ($1::uuid, $2::text, $3::text, 'pending', 0, now(), now())
on conflict (order_id) where status in ('pending', 'processing') do nothing;
`

// QUpdateTaskProgress persists a poll tick. Terminal tasks are never moved,
// which makes duplicate provider callbacks harmless.
const QUpdateTaskProgress = `--sql 17e6a0b9-4d58-4c21-bf73-8a42d19c65e0
update generation_tasks
set status = $2::text,
    progress = greatest(progress, $3::int),
    artifact_url = coalesce(nullif($4::text, ''), artifact_url),
    error_message = coalesce(nullif($5::text, ''), error_message),
    updated_at = now()
where id = $1::uuid
  and status in ('pending', 'processing');
`

const QSelectActiveTask = `--sql e3b925d7-06fc-4a84-91e2-c7d08f5a36b1
select id, order_id, external_task_id, status, progress,
       coalesce(error_message, ''), coalesce(artifact_url, ''),
       created_at, updated_at
from generation_tasks
where order_id = $1::text
  and status in ('pending', 'processing')
limit 1;
`

const QSelectTaskByExternalID = `--sql 58a1c4f0-b9d7-4e63-8205-1f6e93a7d40b
select id, order_id, external_task_id, status, progress,
       coalesce(error_message, ''), coalesce(artifact_url, ''),
       created_at, updated_at
from generation_tasks
where external_task_id = $1::text
order by created_at desc
limit 1;
`

const QSelectLatestTask = `--sql f47d80b3-25c9-4a16-bd58-90e3f6c21a7d
select id, order_id, external_task_id, status, progress,
       coalesce(error_message, ''), coalesce(artifact_url, ''),
       created_at, updated_at
from generation_tasks
where order_id = $1::text
order by created_at desc
limit 1;
`
